package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxKeyLen = 255

// captureWriter tees the response body so it can be stored for replay.
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware makes a route safe to retry. Requests without an
// Idempotency-Key header pass straight through. A repeat of a completed
// request replays the stored response; a repeat of one still running gets
// 202. Server errors mark the key failed so the client may retry it.
func Middleware(store Keeper, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Idempotency-Key is too long"})
			return
		}
		ctx := c.Request.Context()
		entry := log.WithField("idempotency_key", key)

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)
		hash := hex.EncodeToString(sum[:])

		created, err := store.CreateIfNotExists(ctx, key, hash)
		if err != nil {
			entry.WithError(err).Error("idempotency check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "idempotency check failed"})
			return
		}
		if !created {
			rec, err := store.Get(ctx, key)
			if err != nil || rec == nil {
				entry.WithError(err).Error("idempotency record lookup failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "idempotency check failed"})
				return
			}
			if rec.RequestHash != "" && rec.RequestHash != hash {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": "Idempotency-Key was used with a different request body"})
				return
			}
			switch rec.Status {
			case StatusDone:
				c.Header("Idempotent-Replayed", "true")
				c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
				c.Abort()
				return
			case StatusInProgress:
				c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"success": false, "message": "request already in progress"})
				return
			case StatusFailed:
				retaken, err := store.Retake(ctx, key)
				if err != nil {
					entry.WithError(err).Error("idempotency retake failed")
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "idempotency check failed"})
					return
				}
				if !retaken {
					c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"success": false, "message": "request already in progress"})
					return
				}
			}
		}

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			if err := store.MarkFailed(ctx, key, http.StatusText(status)); err != nil {
				entry.WithError(err).Warn("mark idempotency failed")
			}
			return
		}
		if err := store.MarkDone(ctx, key, w.body.String(), status); err != nil {
			entry.WithError(err).Warn("mark idempotency done")
		}
	}
}
