package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/enrich"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const seedCatalogue = `[
	{"id":1,"title":"Tokyo Story","release_date":"1953-11-03","rating":5,"production_countries":[{"name":"Japan"}],"director":"Yasujirō Ozu"},
	{"id":2,"title":"Heat","release_date":"1995-12-15","rating":4,"production_countries":[{"name":"United States of America"}],"director":"Michael Mann"},
	{"id":3,"name":"The Wire","first_air_date":"2002-06-02","rating":5,"origin_country":["US"]}
]`

// failingStore fails every call with err
type failingStore struct{ err error }

func (s failingStore) Load(context.Context) (*catalogue.Document, error)          { return nil, s.err }
func (s failingStore) LoadForUpdate(context.Context) (*catalogue.Document, error) { return nil, s.err }
func (s failingStore) Save(context.Context, *catalogue.Document) error            { return s.err }

type stubProvider struct {
	err     error
	details map[int64]*tmdb.Details
}

func (p *stubProvider) Search(_ context.Context, _ catalogue.MediaType, query string, page int) (*tmdb.Page, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &tmdb.Page{Page: page, TotalResults: 1, TotalPages: 1, Results: []tmdb.Result{{ID: 9, Title: query}}}, nil
}

func (p *stubProvider) Popular(_ context.Context, _ catalogue.MediaType, page int) (*tmdb.Page, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &tmdb.Page{Page: page}, nil
}

func (p *stubProvider) Details(_ context.Context, _ catalogue.MediaType, id int64) (*tmdb.Details, error) {
	if p.err != nil {
		return nil, p.err
	}
	d, ok := p.details[id]
	if !ok {
		return nil, tmdb.ErrNotFound
	}
	return d, nil
}

type testServer struct {
	handler  http.Handler
	store    catalogue.Store
	provider *stubProvider
}

type serverOption func(*testing.T, *Services, *Options)

func withStore(store catalogue.Store) serverOption {
	return func(t *testing.T, s *Services, _ *Options) {
		s.Catalogue = catalogue.NewService(store, zap.NewNop())
	}
}

func withPassword(password string) serverOption {
	return func(t *testing.T, s *Services, _ *Options) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		jm, err := auth.NewJWTManager("test-secret", 0)
		require.NoError(t, err)
		s.Auth = auth.NewService(string(hash), jm, zap.NewNop())
	}
}

func withBodyLimit(n int64) serverOption {
	return func(_ *testing.T, _ *Services, o *Options) { o.MaxBodyBytes = n }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	var seed []catalogue.Item
	require.NoError(t, json.Unmarshal([]byte(seedCatalogue), &seed))
	store := catalogue.NewMemoryStore(seed)

	jm, err := auth.NewJWTManager("test-secret", 0)
	require.NoError(t, err)

	provider := &stubProvider{details: map[int64]*tmdb.Details{}}
	cat := catalogue.NewService(store, zap.NewNop())
	svc := Services{
		Catalogue: cat,
		Auth:      auth.NewService("", jm, zap.NewNop()),
		Provider:  provider,
		Enricher:  enrich.NewService(cat, provider, zap.NewNop()),
	}
	o := Options{MaxBodyBytes: 1 << 20}
	for _, opt := range opts {
		opt(t, &svc, &o)
	}

	return &testServer{
		handler:  NewRouter(svc, o, zap.NewNop()),
		store:    store,
		provider: provider,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) items(t *testing.T) []catalogue.Item {
	t.Helper()
	doc, err := s.store.Load(context.Background())
	require.NoError(t, err)
	return doc.Items
}

type moviesBody struct {
	Movies     []catalogue.Item       `json:"movies"`
	Pagination map[string]interface{} `json:"pagination"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func movieIDs(items []catalogue.Item) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/api/movies?type=movie", "")

	rec := srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watchlog_http_requests_total")
}

func TestListMovies(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []int64
		wantTotal  float64
	}{
		{name: "defaults to latest movies", query: "", wantStatus: http.StatusOK, wantIDs: []int64{2, 1}, wantTotal: 2},
		{name: "earliest", query: "?sort=earliest", wantStatus: http.StatusOK, wantIDs: []int64{1, 2}, wantTotal: 2},
		{name: "tv inferred from air date", query: "?type=tv", wantStatus: http.StatusOK, wantIDs: []int64{3}, wantTotal: 1},
		{name: "search", query: "?search=tokyo", wantStatus: http.StatusOK, wantIDs: []int64{1}, wantTotal: 1},
		{name: "page past the end", query: "?page=4", wantStatus: http.StatusOK, wantIDs: []int64{}, wantTotal: 2},
		{name: "largest page number", query: "?page=9223372036854775807", wantStatus: http.StatusOK, wantIDs: []int64{}, wantTotal: 2},
		{name: "unparseable page", query: "?page=abc", wantStatus: http.StatusOK, wantIDs: []int64{2, 1}, wantTotal: 2},
		{name: "invalid type", query: "?type=book", wantStatus: http.StatusBadRequest},
		{name: "invalid sort", query: "?sort=title", wantStatus: http.StatusBadRequest},
	}

	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, "/api/movies"+tt.query, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := decode[moviesBody](t, rec)
			assert.Equal(t, tt.wantIDs, movieIDs(body.Movies))
			assert.Equal(t, tt.wantTotal, body.Pagination["totalItems"])
		})
	}
}

func TestListMoviesFailsSoft(t *testing.T) {
	srv := newTestServer(t, withStore(failingStore{err: fmt.Errorf("%w: missing space id", catalogue.ErrNotConfigured)}))

	rec := srv.do(t, http.MethodGet, "/api/movies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"movies":[],"pagination":{}}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/stats?type=movie", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"totalWatched": 2,
		"totalCountries": 2,
		"totalDirectors": 2,
		"topCountries": [{"name":"Japan","count":1},{"name":"United States of America","count":1}],
		"topDirectors": [{"name":"Yasujirō Ozu","count":1},{"name":"Michael Mann","count":1}]
	}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/stats?type=film", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	broken := newTestServer(t, withStore(failingStore{err: fmt.Errorf("upstream down")}))
	rec = broken.do(t, http.MethodGet, "/api/stats?type=tv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalWatched":0,"totalCountries":0,"totalDirectors":0,"topCountries":[],"topDirectors":[]}`, rec.Body.String())
}

func TestAddMovie(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/add-movie", `{"id":10,"title":"Ran","release_date":"1985-06-01","vote_average":8.2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Movie added successfully!"}`, rec.Body.String())

	items := srv.items(t)
	require.Len(t, items, 4)
	assert.Equal(t, int64(10), items[0].ID)
	assert.JSONEq(t, `8.2`, string(items[0].Extra["vote_average"]))

	rec = srv.do(t, http.MethodPost, "/api/add-movie", `{"id":10,"title":"Ran"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Movie already exists in catalogue"}`, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/add-movie", `{"title":"No id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/add-movie", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteMovie(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/update-movie", `{"id":2,"updates":{"rating":4.5,"review":"the diner scene"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, `true`, string(body["success"]))
	assert.Contains(t, string(body["movie"]), `"the diner scene"`)

	items := srv.items(t)
	heat := items[catalogue.IndexOf(items, 2)]
	assert.Equal(t, 4.5, heat.Rating)
	assert.Equal(t, "Michael Mann", heat.Director)

	rec = srv.do(t, http.MethodPost, "/api/update-movie", `{"id":99,"updates":{"rating":1}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Movie not found"}`, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/update-movie", `{"updates":{"rating":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/delete-movie", `{"id":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1, 3}, movieIDs(srv.items(t)))

	rec = srv.do(t, http.MethodPost, "/api/delete-movie", `{"id":2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchUpdate(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no changes",
			body:       `{"changes":[]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"success":false,"message":"No changes provided"}`,
		},
		{
			name:       "missing changes",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"success":false,"message":"No changes provided"}`,
		},
		{
			name:       "unknown change type",
			body:       `{"changes":[{"type":"move","id":1}]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"success":false,"message":"changes[0].type must be one of [add update delete]"}`,
		},
		{
			name: "mixed batch",
			body: `{"changes":[
				{"type":"add","data":{"id":20,"title":"Ikiru"}},
				{"type":"add","data":{"id":1,"title":"Tokyo Story"}},
				{"type":"update","id":20,"updates":{"rating":5}},
				{"type":"update","id":404,"updates":{"rating":1}},
				{"type":"delete","id":3}
			]}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true,"message":"Saved: 1 added, 1 updated, 1 deleted","stats":{"added":1,"updated":1,"deleted":1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/batch-update", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}

	assert.Equal(t, []int64{1, 2, 20}, movieIDs(srv.items(t)))
}

func TestSaveMovies(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/save-movies", `[{"id":7,"title":"Stalker"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, movieIDs(srv.items(t)))

	rec = srv.do(t, http.MethodPost, "/api/save-movies", `{"id":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWritesWithoutStoreConfiguration(t *testing.T) {
	srv := newTestServer(t, withStore(failingStore{err: fmt.Errorf("%w: missing management token", catalogue.ErrNotConfigured)}))

	writes := map[string]string{
		"/api/add-movie":    `{"id":1}`,
		"/api/update-movie": `{"id":1,"updates":{"rating":1}}`,
		"/api/delete-movie": `{"id":1}`,
		"/api/batch-update": `{"changes":[{"type":"delete","id":1}]}`,
		"/api/save-movies":  `[]`,
	}
	for path, body := range writes {
		t.Run(path, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, path, body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"success":false,"message":"Server configuration error: Missing Contentful credentials"}`, rec.Body.String())
		})
	}
}

func TestUpstreamWriteError(t *testing.T) {
	srv := newTestServer(t, withStore(failingStore{err: fmt.Errorf("contentful returned 503")}))

	rec := srv.do(t, http.MethodPost, "/api/add-movie", `{"id":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "Failed to add movie: ")
	assert.Contains(t, body["message"], "contentful returned 503")
}

func TestBodyLimit(t *testing.T) {
	srv := newTestServer(t, withBodyLimit(16))

	rec := srv.do(t, http.MethodPost, "/api/save-movies", `[{"id":1,"title":"a title that is far too long"}]`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodOptions, "/api/add-movie", "",
		"Origin", "https://example.com",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type",
	)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = srv.do(t, http.MethodGet, "/api/movies", "", "Origin", "https://example.com")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminAuthentication(t *testing.T) {
	srv := newTestServer(t, withPassword("Watched1999"))

	// Reads stay public
	rec := srv.do(t, http.MethodGet, "/api/movies", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/delete-movie", `{"id":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/delete-movie", `{"id":1}`, "Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/login", `{"password":"Watched1999"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[auth.Token](t, rec)
	require.NotEmpty(t, token.AccessToken)

	rec = srv.do(t, http.MethodPost, "/api/delete-movie", `{"id":1}`, "Authorization", "Bearer "+token.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWhenDisabled(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/auth/login", `{"password":"Watched1999"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTMDBProxy(t *testing.T) {
	srv := newTestServer(t)
	srv.provider.details[550] = &tmdb.Details{ID: 550, Title: "Fight Club"}

	rec := srv.do(t, http.MethodGet, "/api/tmdb/search?type=movie&query=Ran&page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[tmdb.Page](t, rec)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Ran", page.Results[0].Title)

	rec = srv.do(t, http.MethodGet, "/api/tmdb/search?type=movie", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/tmdb/movie/550", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Fight Club", decode[tmdb.Details](t, rec).Title)

	rec = srv.do(t, http.MethodGet, "/api/tmdb/movie/551", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/tmdb/book/550", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTMDBProxyErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantRetry  string
	}{
		{name: "rate limited", err: &tmdb.RateLimitError{RetryAfter: 3 * time.Second}, wantStatus: http.StatusTooManyRequests, wantRetry: "3"},
		{name: "missing key", err: tmdb.ErrAPIKeyMissing, wantStatus: http.StatusInternalServerError},
		{name: "breaker open", err: fmt.Errorf("%w: circuit open", tmdb.ErrUnavailable), wantStatus: http.StatusServiceUnavailable},
		{name: "upstream", err: fmt.Errorf("%w: status 500", tmdb.ErrAPIError), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			srv.provider.err = tt.err

			rec := srv.do(t, http.MethodGet, "/api/tmdb/popular?type=tv", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetry, rec.Header().Get("Retry-After"))
		})
	}
}

func TestEnrichEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.provider.details[3] = &tmdb.Details{ID: 3, OriginCountry: []string{"US"}, CreatedBy: []tmdb.Creator{{Name: "David Simon"}}}

	rec := srv.do(t, http.MethodPost, "/api/enrich?type=tv", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"candidates":1,"enriched":1,"skipped":0,"failed":0,"saved":1}`, rec.Body.String())

	items := srv.items(t)
	assert.Equal(t, "David Simon", items[catalogue.IndexOf(items, 3)].Creator)

	rec = srv.do(t, http.MethodPost, "/api/enrich?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
