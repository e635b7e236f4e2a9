package newsapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"newsrelay/internal/domain"
	"newsrelay/internal/retry"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeArticles = `{
	"status": "ok",
	"totalResults": 3,
	"articles": [
		{"title": "First", "description": "First description", "url": "https://example.com/1", "urlToImage": "https://example.com/1.jpg"},
		{"title": "Second", "description": "Second description", "url": "https://example.com/2", "urlToImage": null},
		{"title": "Third", "description": "Third description", "url": "https://example.com/3", "urlToImage": "https://example.com/3.jpg"}
	]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newTestClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:  baseURL,
		APIKey:   "secret-key",
		Query:    "technology",
		Sources:  []string{"wired", "the-verge"},
		Language: "en",
		SortBy:   "publishedAt",
		Timeout:  time.Second,
	}, testPolicy(), testLogger())
}

func TestClient_FetchArticles_Success(t *testing.T) {
	var gotQuery map[string]string
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q":        q.Get("q"),
			"sources":  q.Get("sources"),
			"language": q.Get("language"),
			"sortBy":   q.Get("sortBy"),
			"pageSize": q.Get("pageSize"),
			"apiKey":   q.Get("apiKey"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(threeArticles))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, map[string]string{
		"q":        "technology",
		"sources":  "wired,the-verge",
		"language": "en",
		"sortBy":   "publishedAt",
		"pageSize": "3",
		"apiKey":   "secret-key",
	}, gotQuery)
	assert.Equal(t, domain.Article{
		Title:       "First",
		Description: "First description",
		ImageURL:    "https://example.com/1.jpg",
		URL:         "https://example.com/1",
	}, articles[0])
	assert.False(t, articles[1].HasImage())
	assert.Equal(t, "https://example.com/3", articles[2].URL)
}

func TestClient_FetchArticles_TruncatesToLimit(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(threeArticles))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "First", articles[0].Title)
	assert.Equal(t, "Second", articles[1].Title)
}

func TestClient_FetchArticles_FewerThanLimit(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","totalResults":1,"articles":[{"title":"Only","description":"One","url":"https://example.com/only"}]}`))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 4)

	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestClient_FetchArticles_SkipsIncompleteRecords(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"[Removed]","description":"[Removed]","url":"https://removed.com"},
			{"title":"No description","description":null,"url":"https://example.com/a"},
			{"title":"No url","description":"desc","url":""},
			{"title":"Good","description":"Good desc","url":"https://example.com/good","urlToImage":"not-a-url"}
		]}`))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Good", articles[0].Title)
	assert.Empty(t, articles[0].ImageURL)
}

func TestClient_FetchArticles_StripsMarkup(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"AT&amp;T <b>launches</b>  5G","description":"<p>New\n network</p><script>alert(1)</script>","url":"https://example.com/att"}
		]}`))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "AT&T launches 5G", articles[0].Title)
	assert.Equal(t, "New network", articles[0].Description)
}

func TestClient_FetchArticles_Unauthorized(t *testing.T) {
	var calls int32
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	assert.Nil(t, articles)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "401 Unauthorized", fetchErr.Status)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "permanent failures must not be retried")
}

func TestClient_FetchArticles_RetriesServerErrors(t *testing.T) {
	var calls int32
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(threeArticles))
	}))
	defer testServer.Close()

	articles, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	require.NoError(t, err)
	assert.Len(t, articles, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_FetchArticles_ServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer testServer.Close()

	_, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, err.Error(), "unexpected status code: 503")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_FetchArticles_InvalidJSON(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer testServer.Close()

	_, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	var parseErr *domain.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "failed to decode JSON")
}

func TestClient_FetchArticles_MissingArticles(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","totalResults":0}`))
	}))
	defer testServer.Close()

	_, err := newTestClient(testServer.URL).FetchArticles(context.Background(), 3)

	var parseErr *domain.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "no articles list")
}

func TestClient_FetchArticles_ContextCancelled(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(threeArticles))
	}))
	defer testServer.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	articles, err := newTestClient(testServer.URL).FetchArticles(ctx, 3)

	assert.Error(t, err)
	assert.Nil(t, articles)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestClient_FetchArticles_InvalidLimit(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").FetchArticles(context.Background(), 0)

	var fetchErr *domain.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}
