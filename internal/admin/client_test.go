package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/catalogue"
	apihttp "github.com/blakestevenson/watchlog/internal/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAPI(t *testing.T, store catalogue.Store, passwordHash string) *httptest.Server {
	t.Helper()

	jm, err := auth.NewJWTManager("test-secret", 0)
	require.NoError(t, err)

	handler := apihttp.NewRouter(apihttp.Services{
		Catalogue: catalogue.NewService(store, zap.NewNop()),
		Auth:      auth.NewService(passwordHash, jm, zap.NewNop()),
	}, apihttp.Options{}, zap.NewNop())

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func seededStore(t *testing.T, n int) *catalogue.MemoryStore {
	t.Helper()
	items := make([]catalogue.Item, n)
	for i := range items {
		items[i] = catalogue.Item{
			ID:          int64(i + 1),
			Title:       fmt.Sprintf("Movie %d", i+1),
			ReleaseDate: fmt.Sprintf("20%02d-01-01", i%30),
		}
	}
	items = append(items, catalogue.Item{ID: 1000, Name: "A Show", FirstAirDate: "2010-01-01"})
	return catalogue.NewMemoryStore(items)
}

func TestClientListAll(t *testing.T) {
	srv := newAPI(t, seededStore(t, 65), "")
	client := NewClient(srv.URL, zap.NewNop())
	ctx := context.Background()

	movies, err := client.ListAll(ctx, catalogue.MediaTypeMovie)
	require.NoError(t, err)
	assert.Len(t, movies, 65)

	shows, err := client.ListAll(ctx, catalogue.MediaTypeTV)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, "A Show", shows[0].Name)

	page, err := client.ListPage(ctx, catalogue.QueryParams{Page: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNextPage)
}

type unavailableStore struct{}

func (unavailableStore) Load(context.Context) (*catalogue.Document, error) {
	return nil, catalogue.ErrNotConfigured
}
func (unavailableStore) LoadForUpdate(context.Context) (*catalogue.Document, error) {
	return nil, catalogue.ErrNotConfigured
}
func (unavailableStore) Save(context.Context, *catalogue.Document) error {
	return catalogue.ErrNotConfigured
}

func TestClientListAllUnavailable(t *testing.T) {
	srv := newAPI(t, unavailableStore{}, "")
	client := NewClient(srv.URL, zap.NewNop())

	_, err := client.ListAll(context.Background(), catalogue.MediaTypeMovie)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = client.SaveAll(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Server configuration error: Missing Contentful credentials", apiErr.Message)
}

func TestClientFlush(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Watched1999"), bcrypt.MinCost)
	require.NoError(t, err)

	store := seededStore(t, 2)
	srv := newAPI(t, store, string(hash))
	client := NewClient(srv.URL, zap.NewNop())
	ctx := context.Background()

	watched, err := client.ListAll(ctx, catalogue.MediaTypeMovie)
	require.NoError(t, err)

	s := NewState(catalogue.MediaTypeMovie, watched)
	s, err = Rate(s, 1, 5)
	require.NoError(t, err)
	s, err = ToggleWatched(s, 2, watchedAt)
	require.NoError(t, err)

	_, _, err = client.Flush(ctx, s)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	assert.Error(t, client.Login(ctx, "wrong"))
	require.NoError(t, client.Login(ctx, "Watched1999"))

	flushed, stats, err := client.Flush(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, catalogue.ApplyStats{Updated: 1, Deleted: 1}, *stats)
	assert.False(t, flushed.Dirty())

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	ids := make([]int64, len(doc.Items))
	for i, it := range doc.Items {
		ids[i] = it.ID
	}
	assert.Equal(t, []int64{1, 1000}, ids)
	assert.Equal(t, 5.0, doc.Items[0].Rating)

	statsResp, err := client.Stats(ctx, catalogue.MediaTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, 1, statsResp.TotalWatched)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Movie not found", errorMessage([]byte(`{"success":false,"message":"Movie not found"}`)))
	assert.Equal(t, "invalid credentials", errorMessage([]byte(`{"error":"invalid credentials","code":401}`)))
	assert.Equal(t, "bad gateway", errorMessage([]byte("bad gateway\n")))

	raw, err := json.Marshal(map[string]string{"message": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", errorMessage(raw))
}
