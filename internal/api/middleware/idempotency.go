package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyLock = 10 * time.Second
	idempotencyTTL  = 24 * time.Hour
)

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the stored response of a completed request that
// carried the same Idempotency-Key and caller to the same method and path.
// A nil client disables it.
func Idempotency(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if redisClient == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only apply to state-changing methods
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := IdempotencyKey(Caller(r.Context()), r.Method, r.URL.Path, key)
			ctx := r.Context()

			val, err := redisClient.Get(ctx, idemKey).Bytes()
			if err == nil {
				var stored storedResponse
				if json.Unmarshal(val, &stored) != nil || stored.Status == 0 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusConflict)
					w.Write([]byte(`{"error":"concurrent request","kind":"conflict"}`))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(stored.Status)
				w.Write(stored.Body)
				return
			} else if err != redis.Nil {
				next.ServeHTTP(w, r)
				return
			}

			// SETNX with a short TTL so a crashed request does not hold the key forever.
			acquired, err := redisClient.SetNX(ctx, idemKey, "{}", idempotencyLock).Result()
			if err != nil || !acquired {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"error":"concurrent request","kind":"conflict"}`))
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Server errors may succeed on retry, so they are not remembered.
			if rec.status >= http.StatusInternalServerError {
				redisClient.Del(ctx, idemKey)
				return
			}
			body := rec.body.Bytes()
			if !json.Valid(body) {
				body = []byte("null")
			}
			stored, _ := json.Marshal(storedResponse{Status: rec.status, Body: body})
			redisClient.Set(ctx, idemKey, stored, idempotencyTTL)
		})
	}
}

// IdempotencyKey is the redis key a request's stored response lives under.
func IdempotencyKey(caller, method, path, key string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s:%s", caller, method, path, key)
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
