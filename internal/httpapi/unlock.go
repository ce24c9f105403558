package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"screencontrol-agent/internal/credstore"
)

// registerUnlockRoutes wires the operator-facing unlock-credential
// management surface, independent of the platform-specific
// credential-provider bridge below.
func (s *Server) registerUnlockRoutes(r *gin.Engine) {
	r.POST("/unlock", s.handleUnlockNow)
	r.POST("/unlock/credentials", s.handleStoreUnlockCredentials)
	r.DELETE("/unlock/credentials", s.handleClearUnlockCredentials)
	r.GET("/unlock/status", s.handleUnlockStatus)
}

func (s *Server) handleUnlockNow(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store unavailable"})
		return
	}
	if err := s.creds.UnlockWithStoredCredentials(); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "no stored unlock credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStoreUnlockCredentials(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store unavailable"})
		return
	}
	ok := s.creds.StoreUnlockCredentials(body.Username, body.Password)
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (s *Server) handleClearUnlockCredentials(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store unavailable"})
		return
	}
	if err := s.creds.ClearUnlockCredentials(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUnlockStatus(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusOK, gin.H{"hasCredentials": false})
		return
	}
	has, err := s.creds.HasUnlockCredentials()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasCredentials": has})
}
