package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleGetSettings returns the merged, persisted Settings document.
func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.cfgStore.LoadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// handlePostSettings merges a partial settings patch and persists it.
func (s *Server) handlePostSettings(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := s.cfgStore.MergeSettings(patch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}
