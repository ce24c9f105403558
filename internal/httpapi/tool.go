package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleTool implements POST /tool: {method, params} forwarded verbatim
// to the Dispatcher, per §4.F's literal contract.
func (s *Server) handleTool(c *gin.Context) {
	var body struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.dispatch(c, body.Method, body.Params)
}

// dispatch runs one Dispatcher call and renders its outcome as HTTP 200,
// per §6: logical failures are carried in the JSON body, not the status
// code; only malformed JSON is 4xx and only unexpected internal errors
// are 5xx.
func (s *Server) dispatch(c *gin.Context, method string, params json.RawMessage) {
	result, err := s.dispatcher.Dispatch(c.Request.Context(), method, params)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) dispatchMethodNoBody(method string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatch(c, method, nil)
	}
}

func (s *Server) dispatchMethodWithBody(method string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.dispatch(c, method, raw)
	}
}

func (s *Server) registerFsRoutes(r *gin.Engine) {
	fs := r.Group("/fs")
	fs.POST("/list", s.dispatchMethodWithBody("fs_list"))
	fs.POST("/read", s.dispatchMethodWithBody("fs_read"))
	fs.POST("/read_range", s.dispatchMethodWithBody("fs_read_range"))
	fs.POST("/write", s.dispatchMethodWithBody("fs_write"))
	fs.POST("/delete", s.dispatchMethodWithBody("fs_delete"))
	fs.POST("/move", s.dispatchMethodWithBody("fs_move"))
	fs.POST("/search", s.dispatchMethodWithBody("fs_search"))
	fs.POST("/grep", s.dispatchMethodWithBody("fs_grep"))
	fs.POST("/patch", s.dispatchMethodWithBody("fs_patch"))
}

func (s *Server) registerShellRoutes(r *gin.Engine) {
	shell := r.Group("/shell")
	shell.POST("/exec", s.dispatchMethodWithBody("shell_exec"))
	shell.POST("/start", s.dispatchMethodWithBody("shell_start_session"))
	shell.POST("/input", s.dispatchMethodWithBody("shell_send_input"))
	shell.POST("/output", s.dispatchMethodWithBody("shell_read_output"))
	shell.POST("/stop", s.dispatchMethodWithBody("shell_stop_session"))
	shell.GET("/list", s.dispatchMethodNoBody("shell_list_sessions"))
}
