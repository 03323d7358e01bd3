package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/events"
)

// handleGetConfig returns the current configuration with credentials redacted.
func (s *Server) handleGetConfig(c *gin.Context) {
	servers := s.cfg.GetServers()
	for i := range servers {
		if servers[i].Password != "" {
			servers[i].Password = "<redacted>"
		}
	}

	app := s.cfg.GetApplication()
	app.Security.APIToken = ""

	c.JSON(http.StatusOK, gin.H{
		"servers":          servers,
		"application_data": app,
	})
}

// handleAddServer adds a server entry to the fleet configuration and
// persists it.
func (s *Server) handleAddServer(c *gin.Context) {
	var srv config.ServerConfig
	if err := c.ShouldBindJSON(&srv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if srv.Name == "" || srv.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and address are required"})
		return
	}

	if err := s.cfg.AddServer(srv); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	if err := s.cfg.Save(); err != nil {
		log.Error().Err(err).Msg("API: failed to save config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	s.eventBus.Emit(c.Request.Context(), events.Event{
		Type:    events.EventConfigChanged,
		Source:  "api",
		Payload: events.ConfigChangedPayload{Section: "servers"},
	})

	log.Info().Str("server", srv.Name).Str("addr", srv.Address).Msg("API: server added")
	c.JSON(http.StatusOK, gin.H{"status": "added", "server": srv.Name})
}

// handleRemoveServer deletes a server entry. A live session to it is closed
// first.
func (s *Server) handleRemoveServer(c *gin.Context) {
	name := c.Param("name")

	// Best effort: not being connected is fine.
	s.manager.Disconnect(c.Request.Context(), name)

	if !s.cfg.RemoveServer(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found", "server": name})
		return
	}

	if err := s.cfg.Save(); err != nil {
		log.Error().Err(err).Msg("API: failed to save config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	s.eventBus.Emit(c.Request.Context(), events.Event{
		Type:    events.EventConfigChanged,
		Source:  "api",
		Payload: events.ConfigChangedPayload{Section: "servers"},
	})

	log.Info().Str("server", name).Msg("API: server removed")
	c.JSON(http.StatusOK, gin.H{"status": "removed", "server": name})
}
