package catalogue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaType distinguishes movies from TV shows
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether t is one of the known media types
func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

// ParseMediaType converts a request value into a MediaType, defaulting to movie
func ParseMediaType(s string) (MediaType, error) {
	if s == "" {
		return MediaTypeMovie, nil
	}
	t := MediaType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, s)
	}
	return t, nil
}

// Country is one entry of a movie's production_countries list
type Country struct {
	ISO31661 string `json:"iso_3166_1,omitempty"`
	Name     string `json:"name"`
}

// Item is one watched movie or TV show.
//
// Only the attributes the catalogue reasons about are typed. Everything else a
// record carries (overview, vote_average, genre_ids, ...) is kept verbatim in
// Extra so that a load/save cycle never drops data.
type Item struct {
	ID                  int64
	MediaType           MediaType
	Title               string
	Name                string
	ReleaseDate         string
	FirstAirDate        string
	Rating              float64
	Review              string
	PosterPath          string
	ProductionCountries []Country
	OriginCountry       []string
	Director            string
	Creator             string
	DateWatched         string

	Extra map[string]json.RawMessage
}

// JSON attribute names of the typed fields
const (
	FieldID                  = "id"
	FieldMediaType           = "media_type"
	FieldTitle               = "title"
	FieldName                = "name"
	FieldReleaseDate         = "release_date"
	FieldFirstAirDate        = "first_air_date"
	FieldRating              = "rating"
	FieldReview              = "review"
	FieldPosterPath          = "poster_path"
	FieldProductionCountries = "production_countries"
	FieldOriginCountry       = "origin_country"
	FieldDirector            = "director"
	FieldCreator             = "creator"
	FieldDateWatched         = "dateWatched"
)

// ResolvedType returns the explicit media type, or infers it: a first air date means tv
func (it *Item) ResolvedType() MediaType {
	if it.MediaType != "" {
		return it.MediaType
	}
	if it.FirstAirDate != "" {
		return MediaTypeTV
	}
	return MediaTypeMovie
}

// DisplayTitle returns the movie title or the show name
func (it *Item) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	return it.Name
}

// Date returns the release date, falling back to the first air date
func (it *Item) Date() string {
	if it.ReleaseDate != "" {
		return it.ReleaseDate
	}
	return it.FirstAirDate
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01",
	"2006",
}

// sortKey is the item date in Unix milliseconds; missing or unparseable dates are the epoch
func (it *Item) sortKey() int64 {
	date := strings.TrimSpace(it.Date())
	if date == "" {
		return 0
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// UnmarshalJSON decodes a record, routing unknown attributes into Extra.
// Known attributes that are null, empty or of an unexpected JSON type are kept
// in Extra as well, so they are written back exactly as they were read.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*it = Item{}
	for key, value := range raw {
		if !it.decodeField(key, value) {
			if it.Extra == nil {
				it.Extra = make(map[string]json.RawMessage)
			}
			it.Extra[key] = value
		}
	}
	return nil
}

// decodeField stores a known attribute and reports whether it was consumed
func (it *Item) decodeField(key string, value json.RawMessage) bool {
	switch key {
	case FieldID:
		id, ok := decodeID(value)
		if ok {
			it.ID = id
		}
		return ok
	case FieldMediaType:
		var s string
		ok := decodeString(value, &s)
		it.MediaType = MediaType(s)
		return ok
	case FieldTitle:
		return decodeString(value, &it.Title)
	case FieldName:
		return decodeString(value, &it.Name)
	case FieldReleaseDate:
		return decodeString(value, &it.ReleaseDate)
	case FieldFirstAirDate:
		return decodeString(value, &it.FirstAirDate)
	case FieldRating:
		it.Rating = decodeRating(value)
		return isNumber(value)
	case FieldReview:
		return decodeString(value, &it.Review)
	case FieldPosterPath:
		return decodeString(value, &it.PosterPath)
	case FieldProductionCountries:
		var countries []Country
		if isNull(value) || json.Unmarshal(value, &countries) != nil {
			return false
		}
		it.ProductionCountries = countries
		return true
	case FieldOriginCountry:
		var codes []string
		if isNull(value) || json.Unmarshal(value, &codes) != nil {
			return false
		}
		it.OriginCountry = codes
		return true
	case FieldDirector:
		return decodeString(value, &it.Director)
	case FieldCreator:
		return decodeString(value, &it.Creator)
	case FieldDateWatched:
		return decodeString(value, &it.DateWatched)
	}
	return false
}

// MarshalJSON encodes Extra plus every typed field that is set
func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Extra)+8)
	for k, v := range it.Extra {
		out[k] = v
	}

	if _, kept := out[FieldID]; !kept || it.ID != 0 {
		out[FieldID] = it.ID
	}
	// A rating read from a string or null stays as it was until it changes
	if raw, kept := out[FieldRating]; !kept || decodeRating(raw.(json.RawMessage)) != it.Rating {
		out[FieldRating] = it.Rating
	}

	setString(out, FieldMediaType, string(it.MediaType))
	setString(out, FieldTitle, it.Title)
	setString(out, FieldName, it.Name)
	setString(out, FieldReleaseDate, it.ReleaseDate)
	setString(out, FieldFirstAirDate, it.FirstAirDate)
	setString(out, FieldReview, it.Review)
	setString(out, FieldPosterPath, it.PosterPath)
	setString(out, FieldDirector, it.Director)
	setString(out, FieldCreator, it.Creator)
	setString(out, FieldDateWatched, it.DateWatched)

	if it.ProductionCountries != nil {
		out[FieldProductionCountries] = it.ProductionCountries
	}
	if it.OriginCountry != nil {
		out[FieldOriginCountry] = it.OriginCountry
	}

	return json.Marshal(out)
}

func setString(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

// decodeString stores a non-empty string and reports whether it did
func decodeString(value json.RawMessage, dst *string) bool {
	var s string
	if isNull(value) || json.Unmarshal(value, &s) != nil || s == "" {
		*dst = ""
		return false
	}
	*dst = s
	return true
}

func decodeID(value json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(value, &n); err != nil {
		var s string
		if json.Unmarshal(value, &s) != nil {
			return 0, false
		}
		n = json.Number(s)
	}
	id, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}

// decodeRating accepts numbers and strings with a leading number ("4", "3.5 stars");
// anything else rates 0
func decodeRating(value json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(value, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return leadingFloat(s)
	}
	return 0
}

// leadingFloat parses the longest decimal number at the start of s, after
// leading whitespace. It returns 0 when s does not start with a number.
func leadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n")

	end, digits := 0, 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && isDigit(s[end]) {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && isDigit(s[end]) {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		if exp < len(s) && isDigit(s[exp]) {
			for exp < len(s) && isDigit(s[exp]) {
				exp++
			}
			end = exp
		}
	}

	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumber(value json.RawMessage) bool {
	var f float64
	return !isNull(value) && json.Unmarshal(value, &f) == nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// Fields is a partial record carried by update changes
type Fields map[string]json.RawMessage

// Set encodes value under key
func (f Fields) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %s: %w", key, err)
	}
	f[key] = data
	return nil
}

// MergeFields returns item with updates shallowly applied. Attributes not named
// in updates are preserved.
func MergeFields(item Item, updates Fields) (Item, error) {
	if len(updates) == 0 {
		return item, nil
	}

	data, err := json.Marshal(item)
	if err != nil {
		return Item{}, fmt.Errorf("failed to encode item: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Item{}, fmt.Errorf("failed to decode item: %w", err)
	}
	for k, v := range updates {
		fields[k] = v
	}

	data, err = json.Marshal(fields)
	if err != nil {
		return Item{}, fmt.Errorf("failed to encode merged item: %w", err)
	}

	var merged Item
	if err := json.Unmarshal(data, &merged); err != nil {
		return Item{}, fmt.Errorf("failed to decode merged item: %w", err)
	}
	return merged, nil
}
