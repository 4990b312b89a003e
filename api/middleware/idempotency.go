package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/arena-backend/api/responses"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
	"github.com/angelmondragon/arena-backend/pkg/logger"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	// Order creation and wallet credits move money; their keys outlive the
	// configured default.
	moneyKeyTTL = 7 * 24 * time.Hour
	// A claim left behind by a crashed request blocks the key only this long.
	inFlightTTL = 2 * time.Minute
)

// idempotentRoute matches a request path by prefix and suffix. A zero ttl
// means the configured default.
type idempotentRoute struct {
	prefix string
	suffix string
	ttl    time.Duration
}

var idempotentPosts = []idempotentRoute{
	{prefix: "/api/v1/venue-bookings"},
	{prefix: "/api/v1/event-bookings"},
	{prefix: "/api/v1/shop-orders"},
	{prefix: "/api/v1/reservations/", suffix: "/order", ttl: moneyKeyTTL},
	{prefix: "/api/v1/admin/users/", suffix: "/wallet/credit", ttl: moneyKeyTTL},
}

func (r idempotentRoute) matches(path string) bool {
	if r.suffix == "" {
		return path == r.prefix
	}
	return len(path) > len(r.prefix)+len(r.suffix) &&
		strings.HasPrefix(path, r.prefix) && strings.HasSuffix(path, r.suffix)
}

type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// storedResponse is the value kept under an idempotency key. Status zero
// marks a request that is still being handled.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency guards the creation and money-moving POST routes. The first
// request with a key claims it and its response is stored; repeats with the
// same body replay that response, repeats with another body get 409, and a
// repeat that arrives while the first is still running gets 409 too.
// Responses with a 5xx status release the key so the client can retry.
func Idempotency(store idempotencyStore, defaultTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := idempotencyTTL(r, defaultTTL)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			claim, _ := json.Marshal(storedResponse{RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), min(ttl, inFlightTTL))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, store, key, hash, w, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			kept := false
			defer func() {
				if kept {
					return
				}
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
			}()

			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}
			record, _ := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err := store.Set(context.WithoutCancel(ctx), key, string(record), ttl); err != nil {
				if logg != nil {
					logg.Error(ctx, "store idempotent response", err)
				}
				return
			}
			kept = true
		})
	}
}

func replay(ctx context.Context, store idempotencyStore, key, hash string, w http.ResponseWriter, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder released the key between our claim and this read.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is in progress, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Status == 0:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is in progress, retry"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// idempotencyTTL resolves the key lifetime for guarded routes. The
// middleware is mounted on a sub-router, so a pattern ending in "*" carries no
// route detail and the raw path is matched instead.
func idempotencyTTL(r *http.Request, defaultTTL time.Duration) (time.Duration, bool) {
	if r.Method != http.MethodPost {
		return 0, false
	}
	path := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" && !strings.HasSuffix(p, "*") {
			path = p
		}
	}
	for _, route := range idempotentPosts {
		if !route.matches(path) {
			continue
		}
		if route.ttl > 0 {
			return route.ttl, true
		}
		return defaultTTL, true
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
