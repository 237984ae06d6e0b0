package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// sseHeaders is applied to every event stream response. X-Accel-Buffering
// tells buffering reverse proxies to pass events through as they are
// written instead of batching the stream.
var sseHeaders = map[string]string{
	"Content-Type":      "text/event-stream",
	"Cache-Control":     "no-cache",
	"Connection":        "keep-alive",
	"X-Accel-Buffering": "no",
}

// PrepareSSE sets the event stream headers and returns the writer's
// flusher. The second return is false when the underlying writer cannot
// stream, in which case no headers should be trusted.
func PrepareSSE(c *gin.Context) (http.Flusher, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, false
	}
	header := c.Writer.Header()
	for name, value := range sseHeaders {
		header.Set(name, value)
	}
	return flusher, true
}
