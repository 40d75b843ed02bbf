package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyHeader     = "Idempotency-Key"
	ReplayedHeader        = "Idempotent-Replayed"
	DefaultIdempotencyTTL = 24 * time.Hour
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a client repeats a write
// with the same Idempotency-Key. Keys are scoped to the principal, the
// method and the path, so it must run after Authenticator.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotency creates the middleware. A nil client disables replay.
func NewIdempotency(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Idempotency{client: client, ttl: ttl, logger: logger}
}

// Middleware returns the gin handler.
func (m *Idempotency) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if m.client == nil || key == "" || !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := replayKey(PrincipalID(c), c.Request.Method, c.Request.URL.Path, key)

		stored, err := m.load(ctx, storeKey)
		if err != nil {
			m.logger.WarnContext(ctx, "idempotency lookup failed, serving without replay",
				slog.String("key", storeKey),
				slog.String("error", err.Error()),
			)
			c.Next()
			return
		}
		if stored != nil {
			c.Header(ReplayedHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		err = m.save(context.WithoutCancel(ctx), storeKey, storedResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			m.logger.WarnContext(ctx, "idempotency store failed",
				slog.String("key", storeKey),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (m *Idempotency) load(ctx context.Context, key string) (*storedResponse, error) {
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (m *Idempotency) save(ctx context.Context, key string, stored storedResponse) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, key, data, m.ttl).Err()
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func replayKey(principalID, method, path, key string) string {
	return strings.Join([]string{"idempotency", principalID, method, path, key}, ":")
}
