// Package webhook receives Spark message-created callbacks, resolves
// the full message through the chat gateway and dispatches it to the
// reply composer.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imapex/tacbot-go/internal/bot"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/metrics"
	"github.com/imapex/tacbot-go/internal/sentry"
	"github.com/imapex/tacbot-go/internal/spark"
)

// Runtime is the configured bot surface a webhook event runs against.
// A new Runtime replaces the old one atomically when credentials
// change, so every field here is immutable after construction.
type Runtime struct {
	Gateway  spark.Gateway
	Composer *bot.Composer

	// BotPersonID and BotEmail identify the bot's own account; events
	// it generated itself are dropped to avoid reply loops.
	BotPersonID string
	BotEmail    string
}

// payload is the Spark webhook callback body. Only the identifiers are
// carried; the message text is fetched separately.
type payload struct {
	Data struct {
		ID       string `json:"id"`
		RoomID   string `json:"roomId"`
		PersonID string `json:"personId"`
	} `json:"data"`
}

// Handler handles Spark webhook callbacks. Each event is processed
// synchronously within the request: the handler blocks on the message
// fetch, the case lookup and the reply send, bounded by timeout.
type Handler struct {
	runtime func() *Runtime
	metrics *metrics.Metrics
	logger  *logger.Logger
	timeout time.Duration
}

// NewHandler creates a webhook handler. runtime returns the current
// bot runtime, or nil while credentials are not yet configured; it is
// consulted per event so credential swaps take effect immediately.
func NewHandler(runtime func() *Runtime, m *metrics.Metrics, log *logger.Logger, timeout time.Duration) *Handler {
	return &Handler{
		runtime: runtime,
		metrics: m,
		logger:  log.WithModule("webhook"),
		timeout: timeout,
	}
}

// Handle is the gin handler for POST /. Processing failures are logged
// and counted but still acknowledged with 200; Spark would otherwise
// retry an event the bot has already answered or deliberately dropped.
func (h *Handler) Handle(c *gin.Context) {
	var p payload
	if err := json.NewDecoder(c.Request.Body).Decode(&p); err != nil {
		h.logger.WithError(err).Warn("Undecodable webhook payload")
		h.metrics.RecordWebhook("bad_request", 0)
		c.Status(http.StatusBadRequest)
		return
	}
	if p.Data.ID == "" || p.Data.RoomID == "" {
		h.metrics.RecordWebhook("bad_request", 0)
		c.Status(http.StatusBadRequest)
		return
	}

	rt := h.runtime()
	if rt == nil {
		h.logger.Warn("Webhook received before credentials were configured")
		h.metrics.RecordWebhook("not_configured", 0)
		c.String(http.StatusServiceUnavailable, "bot not ready")
		return
	}

	h.processEvent(c.Request.Context(), rt, p)
	c.Status(http.StatusOK)
}

// processEvent fetches the message behind the callback and, unless the
// bot sent it itself, replies into the originating room.
func (h *Handler) processEvent(ctx context.Context, rt *Runtime, p payload) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	log := h.logger.WithRequestID(p.Data.ID)

	if p.Data.PersonID == rt.BotPersonID {
		h.metrics.RecordWebhook("self", time.Since(start).Seconds())
		return
	}

	msg, err := rt.Gateway.GetMessage(ctx, p.Data.ID)
	if err != nil {
		log.WithError(err).Error("Failed to fetch webhook message")
		sentry.CaptureExceptionWithContext(ctx, err)
		h.metrics.RecordWebhook("error", time.Since(start).Seconds())
		return
	}

	// Some message payloads omit the sender email; resolve the person
	// record then, since the email gates the restricted commands.
	senderEmail := msg.PersonEmail
	if senderEmail == "" && msg.PersonID != "" {
		if person, err := rt.Gateway.GetPerson(ctx, msg.PersonID); err == nil {
			senderEmail = person.Email()
		} else {
			log.WithError(err).Warn("Failed to resolve sender email")
		}
	}

	// Self-check again on email; room webhooks fire for the bot's own
	// replies too.
	if senderEmail == rt.BotEmail {
		h.metrics.RecordWebhook("self", time.Since(start).Seconds())
		return
	}

	reply := rt.Composer.Handle(ctx, bot.Event{
		RoomID:      p.Data.RoomID,
		MessageID:   p.Data.ID,
		PersonID:    msg.PersonID,
		PersonEmail: senderEmail,
		Text:        msg.Text,
	})

	if err := rt.Gateway.SendMessage(ctx, p.Data.RoomID, reply); err != nil {
		log.WithError(err).Error("Failed to send reply")
		sentry.CaptureExceptionWithContext(ctx, err)
		h.metrics.RecordWebhook("reply_error", time.Since(start).Seconds())
		return
	}

	h.metrics.RecordWebhook("success", time.Since(start).Seconds())
	log.WithField("room_id", p.Data.RoomID).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Webhook event processed")
}

// HandleGet answers webhook reachability probes.
func (h *Handler) HandleGet(c *gin.Context) {
	c.String(http.StatusOK, "up")
}
