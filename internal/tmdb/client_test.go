package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, zap.NewNop())
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "blade runner", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"page":2,"total_pages":3,"total_results":41,"results":[
			{"id":78,"title":"Blade Runner","release_date":"1982-06-25","poster_path":"/63N9uy8nd9j7Eog2axPQ8lbr3Wj.jpg","vote_average":7.9,"genre_ids":[878,18]},
			{"id":335984,"title":"Blade Runner 2049","release_date":"2017-10-04","poster_path":null}
		]}`))
	})

	page, err := client.Search(context.Background(), catalogue.MediaTypeMovie, "blade runner", 2)
	require.NoError(t, err)
	assert.Equal(t, 41, page.TotalResults)
	require.Len(t, page.Results, 2)
	assert.Equal(t, int64(78), page.Results[0].ID)
	assert.Empty(t, page.Results[1].PosterPath)
}

func TestDetailsAppendsCreditsAndImages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1399", r.URL.Path)
		assert.Equal(t, "credits,images", r.URL.Query().Get("append_to_response"))
		_, _ = w.Write([]byte(`{
			"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17",
			"origin_country":["US"],
			"created_by":[{"id":9813,"name":"David Benioff"},{"id":228068,"name":"D. B. Weiss"}],
			"credits":{"cast":[],"crew":[{"id":1,"name":"Someone","job":"Producer"}]},
			"images":{"posters":[{"file_path":"/a.jpg","width":500,"height":750}],"backdrops":[]}
		}`))
	})

	details, err := client.Details(context.Background(), catalogue.MediaTypeTV, 1399)
	require.NoError(t, err)
	assert.Equal(t, "David Benioff", CreatorOf(details.CreatedBy))
	assert.Equal(t, []string{"US"}, details.OriginCountry)
	assert.Empty(t, DirectorOf(details.Credits))
	require.NotNil(t, details.Images)
	assert.Len(t, details.Images.Posters, 1)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    map[string]string
		wantErr   error
		wantRetry time.Duration
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "2"}, wantErr: ErrRateLimited, wantRetry: 2 * time.Second},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrAPIError},
		{name: "server error", status: http.StatusBadGateway, wantErr: ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
			})

			_, err := client.Details(context.Background(), catalogue.MediaTypeMovie, 1)
			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantRetry > 0 {
				var rl *RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, tt.wantRetry, rl.RetryAfter)
			}
		})
	}
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(Config{}, zap.NewNop())
	_, err := client.Popular(context.Background(), catalogue.MediaTypeMovie, 1)
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestBreakerOpensOnUpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL, FailureThreshold: 3, OpenTimeout: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Popular(ctx, catalogue.MediaTypeTV, 1)
		require.ErrorIs(t, err, ErrAPIError)
	}

	_, err := client.Popular(ctx, catalogue.MediaTypeTV, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestBreakerIgnoresRateLimits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL, FailureThreshold: 2}, zap.NewNop())

	for i := 0; i < 4; i++ {
		_, err := client.Search(context.Background(), catalogue.MediaTypeMovie, "x", 1)
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestResultToItem(t *testing.T) {
	result := Result{
		ID:            1396,
		Name:          "Breaking Bad",
		FirstAirDate:  "2008-01-20",
		PosterPath:    "/ggFHVNu6YYI5L9pCfOacjizRGt.jpg",
		VoteAverage:   8.9,
		OriginCountry: []string{"US"},
		Overview:      "A chemistry teacher",
	}

	item, err := result.ToItem(catalogue.MediaTypeTV)
	require.NoError(t, err)

	assert.Equal(t, int64(1396), item.ID)
	assert.Equal(t, catalogue.MediaTypeTV, item.MediaType)
	assert.Equal(t, "Breaking Bad", item.Name)
	assert.Equal(t, []string{"US"}, item.OriginCountry)
	assert.Zero(t, item.Rating)
	assert.Contains(t, item.Extra, "overview")
	assert.Contains(t, item.Extra, "vote_average")
}

func TestHelpers(t *testing.T) {
	credits := &Credits{Crew: []CrewMember{
		{Name: "Gary Kurtz", Job: "Producer"},
		{Name: "George Lucas", Job: "Director"},
		{Name: "Someone Else", Job: "Director"},
	}}

	assert.Equal(t, "George Lucas", DirectorOf(credits))
	assert.Empty(t, DirectorOf(nil))
	assert.Empty(t, CreatorOf(nil))
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/x.jpg", ImageURL("/x.jpg"))
	assert.Empty(t, ImageURL(""))
}
