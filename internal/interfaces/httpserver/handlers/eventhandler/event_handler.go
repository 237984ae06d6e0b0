package eventhandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fieldops/services/coordination-api/internal/domain/events"
	"fieldops/services/coordination-api/internal/interfaces/httpserver/middlewares"
)

const keepaliveInterval = 15 * time.Second

// EventHandler streams coordination events to SSE subscribers.
type EventHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

func NewEventHandler(bus *events.Bus, log zerolog.Logger) *EventHandler {
	return &EventHandler{
		bus: bus,
		log: log.With().Str("component", "event-handler").Logger(),
	}
}

// Stream godoc
// @Summary Stream coordination events
// @Description Streams circuit, health, fallback and budget events as Server Sent Events. Filters are comma separated query params.
// @Tags Events API
// @Produce text/event-stream
// @Param types query string false "Event types to include"
// @Param severities query string false "Severities to include"
// @Param providers query string false "Provider ids to include"
// @Success 200 {string} string "SSE stream"
// @Router /v1/events/stream [get]
func (h *EventHandler) Stream(c *gin.Context) {
	filter := filterFromQuery(c)

	flusher, ok := middlewares.PrepareSSE(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	ch, cancel := h.bus.Subscribe(filter)
	defer cancel()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := c.Writer.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-ch:
			if !open {
				return
			}
			if err := h.writeEvent(c, event); err != nil {
				h.log.Debug().Err(err).Msg("subscriber write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventHandler) writeEvent(c *gin.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := c.Writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.Writer.Write(data); err != nil {
		return err
	}
	_, err = c.Writer.Write([]byte("\n\n"))
	return err
}

func filterFromQuery(c *gin.Context) events.Filter {
	filter := events.Filter{}
	for _, raw := range splitParam(c.Query("types")) {
		filter.Types = append(filter.Types, events.Type(raw))
	}
	for _, raw := range splitParam(c.Query("severities")) {
		filter.Severities = append(filter.Severities, events.Severity(raw))
	}
	filter.ProviderIDs = splitParam(c.Query("providers"))
	return filter
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
