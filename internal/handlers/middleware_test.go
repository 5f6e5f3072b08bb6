package handlers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"proposals/internal/handlers"
)

// fakeReplayStore реализует handlers.ReplayStore в памяти
type fakeReplayStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	failing bool
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{entries: map[string][]byte{}}
}

func (f *fakeReplayStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("store unavailable")
	}
	return f.entries[key], nil
}

func (f *fakeReplayStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unavailable")
	}
	f.entries[key] = value
	return nil
}

func (f *fakeReplayStore) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// countingHandler считает реальные исполнения за middleware
type countingHandler struct {
	calls  int
	status int
	body   string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	io.WriteString(w, h.body)
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	store := newFakeReplayStore()
	next := &countingHandler{status: http.StatusCreated, body: `{"id":1}`}
	mw := handlers.NewIdempotencyCache(store).Middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "abc-123")
		w := httptest.NewRecorder()

		mw.ServeHTTP(w, req)

		res := w.Result()
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)

		require.Equal(t, http.StatusCreated, res.StatusCode)
		require.Equal(t, `{"id":1}`, string(body))
		require.Equal(t, "application/json", res.Header.Get("Content-Type"))
		if i == 0 {
			require.Empty(t, res.Header.Get("X-Idempotency-Replayed"))
		} else {
			require.Equal(t, "true", res.Header.Get("X-Idempotency-Replayed"))
		}
	}

	// обработчик исполнился ровно один раз, повтор пришёл из кэша
	require.Equal(t, 1, next.calls)
}

func TestIdempotencyDoesNotCacheErrors(t *testing.T) {
	store := newFakeReplayStore()
	next := &countingHandler{status: http.StatusUnprocessableEntity, body: `{"error":"nope"}`}
	mw := handlers.NewIdempotencyCache(store).Middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", nil)
		req.Header.Set("Idempotency-Key", "abc-123")
		w := httptest.NewRecorder()

		mw.ServeHTTP(w, req)

		res := w.Result()
		res.Body.Close()
		require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
		require.Empty(t, res.Header.Get("X-Idempotency-Replayed"))
	}

	// не-2xx не кэшируется, оба запроса дошли до обработчика
	require.Equal(t, 2, next.calls)
	require.Equal(t, 0, store.size())
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	store := newFakeReplayStore()
	next := &countingHandler{status: http.StatusCreated, body: `{}`}
	mw := handlers.NewIdempotencyCache(store).Middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", nil)
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, req)
	}

	require.Equal(t, 2, next.calls)
	require.Equal(t, 0, store.size())
}

func TestIdempotencySkipsReadRequests(t *testing.T) {
	store := newFakeReplayStore()
	next := &countingHandler{status: http.StatusOK, body: `[]`}
	mw := handlers.NewIdempotencyCache(store).Middleware(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
		req.Header.Set("Idempotency-Key", "abc-123")
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, req)
	}

	require.Equal(t, 2, next.calls)
	require.Equal(t, 0, store.size())
}

func TestIdempotencyFailsOpenOnStoreError(t *testing.T) {
	store := newFakeReplayStore()
	store.failing = true
	next := &countingHandler{status: http.StatusCreated, body: `{}`}
	mw := handlers.NewIdempotencyCache(store).Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", nil)
	req.Header.Set("Idempotency-Key", "abc-123")
	w := httptest.NewRecorder()

	mw.ServeHTTP(w, req)

	res := w.Result()
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.Equal(t, 1, next.calls)
}

func TestActorMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"user token", "Bearer user:7", "user:7"},
		{"no header", "", "system"},
		{"not a bearer", "Basic dXNlcg==", "system"},
		{"malformed token", "Bearer admin", "system"},
		{"empty bearer", "Bearer ", "system"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			mw := handlers.ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = handlers.Actor(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			mw.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, tc.want, got)
		})
	}
}

func TestRateLimiterReturns429(t *testing.T) {
	rl := handlers.NewRateLimiter(1, 1)
	next := &countingHandler{status: http.StatusOK, body: `{}`}
	mw := rl.Middleware(next)

	// один и тот же клиент: первый запрос проходит, второй упирается в лимит
	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	w := httptest.NewRecorder()
	mw.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	w = httptest.NewRecorder()
	mw.ServeHTTP(w, req)
	res := w.Result()
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	require.Equal(t, "1", res.Header.Get("Retry-After"))
	require.Equal(t, 1, next.calls)
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := handlers.NewRateLimiter(1, 1)
	next := &countingHandler{status: http.StatusOK, body: `{}`}
	mw := rl.Middleware(next)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", nil)
	first.RemoteAddr = "10.0.0.1:5000"
	mw.ServeHTTP(httptest.NewRecorder(), first)

	// другой IP не делит бюджет с первым
	second := httptest.NewRequest(http.MethodPost, "/api/v1/proposals", nil)
	second.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, second)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 2, next.calls)
}
