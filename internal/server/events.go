package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
)

func (s *Server) HandleListEvents(c *gin.Context) {
	var req eventdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Status == "" {
		req.Status = eventdomain.StatusPublished
	}

	events, pageInfo, err := s.eventSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":    events,
		"page_info": pageInfo,
	})
}

func (s *Server) HandleGetEvent(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("id"))

	id, err := snowflake.ParseString(raw)
	if err == nil {
		event, err := s.eventSvc.Get(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
		return
	}

	// Fall back to slug lookup for human-facing URLs.
	event, err := s.eventSvc.GetBySlug(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (s *Server) HandleDeactivateEvent(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, eventdomain.ErrNotFound)
		return
	}

	event, err := s.eventSvc.SetActive(c.Request.Context(), id, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) HandleCreateEvent(c *gin.Context) {
	var req eventdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.eventSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}
