package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "X-Idempotency-Replayed"
	idempotencyPrefix = "idempotency:"
	idempotencyTTL    = 24 * time.Hour
)

// заголовки, которые нельзя воспроизводить из кэша
var skipReplayHeaders = map[string]bool{
	"Set-Cookie":        true,
	"Transfer-Encoding": true,
	"Content-Encoding":  true,
}

type cachedResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

// ReplayStore хранит сохранённые ответы для повторов. Get возвращает
// (nil, nil) при промахе; ошибка означает недоступность хранилища.
// Реализуется Redis-ом, в тестах подменяется in-memory двойником.
type ReplayStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisReplayStore struct {
	rdb *redis.Client
}

func NewRedisReplayStore(rdb *redis.Client) ReplayStore {
	return redisReplayStore{rdb: rdb}
}

func (s redisReplayStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (s redisReplayStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// IdempotencyCache гарантирует не более одного исполнения мутирующего
// запроса на ключ Idempotency-Key в течение 24 часов: первый успешный
// (2xx) ответ кэшируется и воспроизводится дословно с маркером
// X-Idempotency-Replayed при повторе.
type IdempotencyCache struct {
	store ReplayStore
	ttl   time.Duration
}

func NewIdempotencyCache(store ReplayStore) *IdempotencyCache {
	return &IdempotencyCache{store: store, ttl: idempotencyTTL}
}

// responseRecorder перехватывает ответ обработчика для кэширования
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rec *responseRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	rec.body.Write(b)
	return rec.ResponseWriter.Write(b)
}

func (c *IdempotencyCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		cacheKey := idempotencyPrefix + key

		raw, err := c.store.Get(r.Context(), cacheKey)
		if err != nil {
			// недоступное хранилище не должно блокировать запрос
			next.ServeHTTP(w, r)
			return
		}
		if raw != nil {
			// повтор: воспроизводим сохранённый ответ
			var cached cachedResponse
			if json.Unmarshal(raw, &cached) == nil {
				for name, value := range cached.Headers {
					w.Header().Set(name, value)
				}
				w.Header().Set(replayedHeader, "true")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// кэшируем только успешные ответы: транзиентные 5xx не должны залипать
		if rec.status < 200 || rec.status > 299 {
			return
		}

		headers := map[string]string{}
		for name, values := range rec.Header() {
			if skipReplayHeaders[name] || len(values) == 0 {
				continue
			}
			headers[name] = strings.Join(values, ", ")
		}

		payload, err := json.Marshal(cachedResponse{
			Status:  rec.status,
			Headers: headers,
			Body:    rec.body.Bytes(),
		})
		if err != nil {
			return
		}
		c.store.Set(r.Context(), cacheKey, payload, c.ttl)
	})
}
