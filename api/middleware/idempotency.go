package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/patternseek/ecommerce/api/responses"
	pkgerrors "github.com/patternseek/ecommerce/pkg/errors"
	"github.com/patternseek/ecommerce/pkg/logger"
	pkgredis "github.com/patternseek/ecommerce/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	basketsPath = "/api/v1/baskets"
)

// action is the sub-resource under a basket; "" is basket creation.
type basketRule struct {
	method string
	action string
	ttl    time.Duration
}

var basketRules = []basketRule{
	{method: http.MethodPost, action: "", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, action: "vat-number", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, action: "charge", ttl: criticalIdempotencyTTL},
}

type replayRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// basket writes and refuses a reused key whose body differs.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := canonicalPath(r)
			ttl, ok := ttlFor(r.Method, path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if clientKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			bodyHash := hashBody(body)
			key := store.IdempotencyKey(replayScope(r, path), clientKey)

			stored, getErr := store.Get(r.Context(), key)
			if getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			}
			if stored != "" {
				var record replayRecord
				if decodeErr := json.Unmarshal([]byte(stored), &record); decodeErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode idempotency record"))
					return
				}
				if record.RequestHash != bodyHash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body").
						WithDetails(map[string]any{"path": path}))
					return
				}
				replay(w, record)
				return
			}

			rec := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			record := replayRecord{
				Status:      rec.statusOrOK(),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: bodyHash,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}

			payload, marshalErr := json.Marshal(record)
			if marshalErr != nil {
				logError(r.Context(), logg, "marshal idempotency record", marshalErr)
				return
			}
			if _, setErr := store.SetNX(r.Context(), key, string(payload), ttl); setErr != nil {
				logError(r.Context(), logg, "persist idempotency record", setErr)
			}
		})
	}
}

// replayScope keys on the canonical path so "/baskets" and "/baskets/" share a record.
func replayScope(r *http.Request, path string) string {
	return strings.Join([]string{ClientIPFromContext(r.Context()), r.Method, path}, "|")
}

func replay(w http.ResponseWriter, record replayRecord) {
	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// canonicalPath prefers the matched chi pattern and drops any trailing slash.
func canonicalPath(r *http.Request) string {
	if r == nil {
		return ""
	}
	path := r.URL.Path
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		// Inside a mounted subrouter the pattern is still a wildcard.
		if pattern := ctx.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			path = pattern
		}
	}
	if trimmed := strings.TrimRight(path, "/"); trimmed != "" {
		return trimmed
	}
	return path
}

// ttlFor matches /api/v1/baskets and /api/v1/baskets/{id}/{action}.
func ttlFor(method, path string) (time.Duration, bool) {
	action, ok := basketAction(path)
	if !ok {
		return 0, false
	}
	for _, rule := range basketRules {
		if rule.method == method && rule.action == action {
			return rule.ttl, true
		}
	}
	return 0, false
}

func basketAction(path string) (string, bool) {
	path = strings.TrimRight(path, "/")
	if path == basketsPath {
		return "", true
	}
	rest, ok := strings.CutPrefix(path, basketsPath+"/")
	if !ok {
		return "", false
	}
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" || action == "" || strings.Contains(action, "/") {
		return "", false
	}
	return action, true
}

type captureWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *captureWriter) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
