package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/fleet"
	"github.com/rconsole-project/rconsole/internal/session"
	"github.com/rconsole-project/rconsole/internal/util"
)

// handlePing is a liveness check.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleGetServers lists every configured server and its session state.
func (s *Server) handleGetServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"servers": s.manager.Statuses()})
}

// handleConnect dials a server and performs the RCON handshake.
func (s *Server) handleConnect(c *gin.Context) {
	name := c.Param("name")

	err := s.manager.Connect(c.Request.Context(), name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "connected", "server": name})
	case errors.Is(err, fleet.ErrUnknownServer):
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found", "server": name})
	case errors.Is(err, fleet.ErrAlreadyConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "server already connected", "server": name})
	case errors.Is(err, session.ErrAuthRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": "authentication rejected by server", "server": name})
	default:
		log.Error().Err(err).Str("server", name).Msg("API: connect failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "server": name})
	}
}

// handleDisconnect closes the session to a server.
func (s *Server) handleDisconnect(c *gin.Context) {
	name := c.Param("name")

	if err := s.manager.Disconnect(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "server not connected", "server": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected", "server": name})
}

type executeRequest struct {
	Command string `json:"command" binding:"required"`
}

// handleExecute runs a command on a connected server and returns the
// reassembled response.
func (s *Server) handleExecute(c *gin.Context) {
	name := c.Param("name")

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	response, err := s.manager.Execute(c.Request.Context(), name, req.Command)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"server":   name,
			"command":  req.Command,
			"response": response,
		})
	case errors.Is(err, fleet.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "server not connected", "server": name})
	case errors.Is(err, session.ErrSessionBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "another command is in flight", "server": name})
	default:
		log.Error().Err(err).Str("server", name).Str("command", req.Command).Msg("API: execute failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "server": name})
	}
}

// handleServerHistory returns recent commands for one server.
func (s *Server) handleServerHistory(c *gin.Context) {
	s.serveHistory(c, c.Param("name"))
}

// handleHistory returns recent commands across the fleet.
func (s *Server) handleHistory(c *gin.Context) {
	s.serveHistory(c, "")
}

func (s *Server) serveHistory(c *gin.Context, server string) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := s.store.Recent(server, limit)
	if err != nil {
		log.Error().Err(err).Msg("API: history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// handleSystemInfo reports host information and utilization.
func (s *Server) handleSystemInfo(c *gin.Context) {
	cpuPct, memPct := util.HostUsage()
	c.JSON(http.StatusOK, gin.H{
		"system":     util.GetSystemInfo(),
		"cpu_usage":  cpuPct,
		"memory_pct": memPct,
	})
}
