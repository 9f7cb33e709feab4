package gateway

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linuxmatters/tempodetect/internal/beatdetect"
)

// Handlers holds the dependencies the gin routes close over.
type Handlers struct {
	store *Store
}

func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// createSessionRequest configures the Detector behind a new session.
// Zero values fall back to beatdetect's package defaults.
type createSessionRequest struct {
	SampleRate int     `json:"sample_rate"`
	MinTempo   float64 `json:"min_tempo"`
	MaxTempo   float64 `json:"max_tempo"`
}

// CreateSession handles POST /v1/sessions.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	cfg := beatdetect.DefaultConfig()
	if req.SampleRate > 0 {
		cfg.SampleRate = req.SampleRate
	}
	if req.MinTempo > 0 {
		cfg.MinTempo = req.MinTempo
	}
	if req.MaxTempo > 0 {
		cfg.MaxTempo = req.MaxTempo
	}

	id := uuid.NewString()
	if _, err := h.store.Create(id, cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":  id,
		"sample_rate": cfg.SampleRate,
		"min_tempo":   cfg.MinTempo,
		"max_tempo":   cfg.MaxTempo,
	})
}

// PostBlock handles POST /v1/sessions/:id/blocks. The request body is
// raw little-endian float32 samples; no sample-count header is read,
// since the body length implies it, and a malformed
// (non-multiple-of-4) body is rejected.
func (h *Handlers) PostBlock(c *gin.Context) {
	id := c.Param("id")
	session, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if len(body)%4 != 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body length must be a multiple of 4 bytes"})
		return
	}

	samples := make([]float32, len(body)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(body[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}

	session.PushBlock(samples)
	c.JSON(http.StatusAccepted, gin.H{"samples_received": len(samples)})
}

// StreamSSE handles GET /v1/sessions/:id/stream, a Server-Sent Events
// feed of (timestamp, bpm) readings sourced from the session's Redis
// pub/sub channel so any gateway replica can serve the subscription.
func (h *Handlers) StreamSSE(c *gin.Context) {
	id := c.Param("id")
	session, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	ctx := c.Request.Context()

	if last, err := session.LastReading(ctx); err == nil && last != nil {
		writeSSEEvent(c, last)
	}

	sub := session.redis.Subscribe(ctx, session.channel)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := sub.Channel()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, open := <-ch:
			if !open {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func writeSSEEvent(c *gin.Context, reading *Reading) {
	fmt.Fprintf(c.Writer, "data: {\"timestamp\":%s,\"bpm\":%s}\n\n",
		strconv.FormatFloat(reading.Timestamp, 'f', -1, 64),
		strconv.FormatFloat(float64(reading.BPM), 'f', -1, 32))
	c.Writer.Flush()
}
