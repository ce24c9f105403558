package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// registerCredentialProviderRoutes wires the bridge a Windows credential
// provider DLL polls to learn whether an unlock was requested and to fetch
// the stored credentials once. Every handler here re-checks the request
// came from loopback even though the engine only ever binds loopback by
// default, since this surface hands back plaintext credentials.
func (s *Server) registerCredentialProviderRoutes(r *gin.Engine) {
	cp := r.Group("/credential-provider")
	cp.Use(requireLoopback())
	cp.GET("/status", s.handleCredentialProviderStatus)
	cp.GET("/unlock", s.handleCredentialProviderUnlockPending)
	cp.GET("/credentials", s.handleCredentialProviderCredentials)
	cp.POST("/result", s.handleCredentialProviderResult)
}

func requireLoopback() gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.RemoteIP()
		if host != "127.0.0.1" && host != "::1" && !strings.EqualFold(host, "localhost") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "loopback only"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleCredentialProviderStatus(c *gin.Context) {
	if s.machine == nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true})
}

// handleCredentialProviderUnlockPending is polled by the provider DLL to
// learn whether machine_unlock set the pending flag; consuming it here
// means a second poll sees false until the next unlock request.
func (s *Server) handleCredentialProviderUnlockPending(c *gin.Context) {
	if s.machine == nil {
		c.JSON(http.StatusOK, gin.H{"unlock_pending": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlock_pending": s.machine.ConsumeUnlockPending()})
}

func (s *Server) handleCredentialProviderCredentials(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store unavailable"})
		return
	}
	user, password, err := s.creds.CredentialProviderPayload()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "username": user, "password": password})
}

// handleCredentialProviderResult receives the provider DLL's report of
// whether the credentials it was handed actually unlocked the session, for
// audit purposes.
func (s *Server) handleCredentialProviderResult(c *gin.Context) {
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.ledger != nil {
		outcome := "ok"
		if !body.Success {
			outcome = "error"
		}
		_ = s.ledger.Append(time.Now(), "session", "credential-provider-unlock", "", outcome, body.Error)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
