package tmdb

import (
	"fmt"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
)

// Page is one page of search or popular results
type Page struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Result is a movie or TV show from a result list
type Result struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title,omitempty"`
	OriginalTitle    string   `json:"original_title,omitempty"`
	Name             string   `json:"name,omitempty"`
	OriginalName     string   `json:"original_name,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	ReleaseDate      string   `json:"release_date,omitempty"`
	FirstAirDate     string   `json:"first_air_date,omitempty"`
	PosterPath       string   `json:"poster_path,omitempty"`
	BackdropPath     string   `json:"backdrop_path,omitempty"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	Popularity       float64  `json:"popularity"`
	Adult            bool     `json:"adult"`
	GenreIDs         []int    `json:"genre_ids,omitempty"`
	OriginCountry    []string `json:"origin_country,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
}

// ToItem converts a result into a catalogue item of type t. Provider attributes
// the catalogue does not model are carried along unchanged.
func (r Result) ToItem(t catalogue.MediaType) (catalogue.Item, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return catalogue.Item{}, fmt.Errorf("failed to encode result %d: %w", r.ID, err)
	}

	var item catalogue.Item
	if err := item.UnmarshalJSON(data); err != nil {
		return catalogue.Item{}, fmt.Errorf("failed to convert result %d: %w", r.ID, err)
	}
	item.MediaType = t
	return item, nil
}

// Details is the full record of a movie or TV show with credits and images appended
type Details struct {
	ID                  int64               `json:"id"`
	Title               string              `json:"title,omitempty"`
	Name                string              `json:"name,omitempty"`
	Overview            string              `json:"overview"`
	Tagline             string              `json:"tagline,omitempty"`
	Status              string              `json:"status,omitempty"`
	ReleaseDate         string              `json:"release_date,omitempty"`
	FirstAirDate        string              `json:"first_air_date,omitempty"`
	PosterPath          string              `json:"poster_path,omitempty"`
	BackdropPath        string              `json:"backdrop_path,omitempty"`
	Runtime             int                 `json:"runtime,omitempty"`
	VoteAverage         float64             `json:"vote_average"`
	Genres              []Genre             `json:"genres,omitempty"`
	ProductionCountries []catalogue.Country `json:"production_countries,omitempty"`
	OriginCountry       []string            `json:"origin_country,omitempty"`
	CreatedBy           []Creator           `json:"created_by,omitempty"`
	Credits             *Credits            `json:"credits,omitempty"`
	Images              *Images             `json:"images,omitempty"`
}

// Summary returns the list-result view of d, the shape the catalogue stores
func (d Details) Summary() Result {
	return Result{
		ID:            d.ID,
		Title:         d.Title,
		Name:          d.Name,
		Overview:      d.Overview,
		ReleaseDate:   d.ReleaseDate,
		FirstAirDate:  d.FirstAirDate,
		PosterPath:    d.PosterPath,
		BackdropPath:  d.BackdropPath,
		VoteAverage:   d.VoteAverage,
		OriginCountry: d.OriginCountry,
	}
}

// Genre represents a genre from TMDB
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Creator represents a series creator
type Creator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Credits is the appended credits block
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember represents a cast member from TMDB credits
type CastMember struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember represents a crew member from TMDB credits
type CrewMember struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Images is the appended images block
type Images struct {
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
}

// Image is one poster or backdrop
type Image struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
	Iso6391     string  `json:"iso_639_1,omitempty"`
}

// errorResponse is the body TMDB sends with failures
type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
