package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screencontrol-agent/internal/config"
)

func (s *Server) handleControlServerStatus(c *gin.Context) {
	if s.supervisor == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}
	c.JSON(http.StatusOK, s.supervisor.Status())
}

// handleControlServerConnect persists the given connection settings and
// asks the supervisor to (re)connect using them.
func (s *Server) handleControlServerConnect(c *gin.Context) {
	var cfg config.ConnectionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.cfgStore != nil {
		if err := s.cfgStore.SaveConnection(cfg); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if s.supervisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "supervisor not running"})
		return
	}
	if err := s.supervisor.Connect(cfg); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleControlServerDisconnect(c *gin.Context) {
	if s.supervisor != nil {
		s.supervisor.Disconnect()
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleControlServerReconnect(c *gin.Context) {
	if s.supervisor != nil {
		s.supervisor.Reconnect()
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
