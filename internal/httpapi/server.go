// Package httpapi is the loopback HTTP server (component F): the local
// JSON API surface for the co-resident GUI helper and the installer. It
// never listens on anything but 127.0.0.1 by default.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"screencontrol-agent/internal/audit"
	"screencontrol-agent/internal/config"
	"screencontrol-agent/internal/credstore"
	"screencontrol-agent/internal/identity"
)

// Dispatcher is the subset of dispatcher.Dispatcher the HTTP surface
// needs: every /fs, /shell, /system, /clipboard, and /tool route reduces
// to one Dispatch call, reusing the same routing and argument-adapter
// logic the WebSocket protocol client uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Supervisor is the subset of the reconnection supervisor the
// /control-server endpoints need.
type Supervisor interface {
	Status() map[string]any
	Connect(cfg config.ConnectionConfig) error
	Disconnect()
	Reconnect()
}

// Server wires the gin engine to the agent's components.
type Server struct {
	log        zerolog.Logger
	dispatcher Dispatcher
	supervisor Supervisor
	cfgStore   *config.Store
	creds      *credstore.CredentialStore
	ledger     *audit.Ledger
	machine    MachineOps

	engine *gin.Engine
}

// MachineOps is the subset of tools.Machine the credential-provider
// endpoints need.
type MachineOps interface {
	ConsumeUnlockPending() bool
}

// Options bundles Server's dependencies.
type Options struct {
	Log         zerolog.Logger
	Dispatcher  Dispatcher
	Supervisor  Supervisor
	ConfigStore *config.Store
	Credentials *credstore.CredentialStore
	Ledger      *audit.Ledger
	Machine     MachineOps
}

// New builds the gin engine and registers every route.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		log:        opts.Log,
		dispatcher: opts.Dispatcher,
		supervisor: opts.Supervisor,
		cfgStore:   opts.ConfigStore,
		creds:      opts.Credentials,
		ledger:     opts.Ledger,
		machine:    opts.Machine,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://127.0.0.1", "http://localhost"},
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/fingerprint", s.handleFingerprint)
	r.GET("/settings", s.handleGetSettings)
	r.POST("/settings", s.handlePostSettings)

	r.GET("/control-server/status", s.handleControlServerStatus)
	r.POST("/control-server/connect", s.handleControlServerConnect)
	r.POST("/control-server/disconnect", s.handleControlServerDisconnect)
	r.POST("/control-server/reconnect", s.handleControlServerReconnect)

	r.POST("/tool", s.handleTool)
	s.registerFsRoutes(r)
	s.registerShellRoutes(r)
	r.GET("/system/info", s.dispatchMethodNoBody("system_info"))
	r.GET("/clipboard/read", s.dispatchMethodNoBody("clipboard_read"))
	r.POST("/clipboard/write", s.dispatchMethodWithBody("clipboard_write"))

	s.registerUnlockRoutes(r)
	s.registerCredentialProviderRoutes(r)
	s.registerScreenCaptureRoutes(r)

	r.GET("/audit/recent", s.handleAuditRecent)

	s.engine = r
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Int("status", c.Writer.Status()).Msg("http request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "screencontrol"})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := map[string]any{"connected": false}
	if s.supervisor != nil {
		status = s.supervisor.Status()
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleFingerprint(c *gin.Context) {
	fp := identity.Collect()
	c.JSON(http.StatusOK, gin.H{
		"hostname":     fp.Hostname,
		"cpuModel":     fp.CPUModel,
		"macAddresses": fp.MACAddresses,
		"platform":     identity.PlatformTag(),
		"arch":         identity.ArchTag(),
	})
}

func (s *Server) handleAuditRecent(c *gin.Context) {
	if s.ledger == nil {
		c.JSON(http.StatusOK, gin.H{"records": []any{}})
		return
	}
	recs, err := s.ledger.Recent(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}
