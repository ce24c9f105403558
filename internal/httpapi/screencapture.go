package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerScreenCaptureRoutes wires the screen-stream control surface the
// GUI helper polls. Live frame capture and encoding is the co-resident
// helper's job; this core only ever reports that the stream module isn't
// present here, mirroring the GUI-proxy-unavailable pattern rather than
// silently 404ing.
func (s *Server) registerScreenCaptureRoutes(r *gin.Engine) {
	sc := r.Group("/screen")
	sc.POST("/start", handleScreenCaptureUnavailable)
	sc.POST("/stop", handleScreenCaptureUnavailable)
	sc.POST("/refresh", handleScreenCaptureUnavailable)
	sc.GET("/stats", handleScreenCaptureUnavailable)
}

func handleScreenCaptureUnavailable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"error":   "screen capture unavailable - stream module not present in this build",
	})
}
