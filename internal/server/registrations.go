package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	registrationdomain "github.com/openvenue/gatepass/internal/registration/domain"
)

func (s *Server) HandleCreateRegistration(c *gin.Context) {
	var req registrationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.regSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) HandleGetRegistration(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("id"))

	id, err := snowflake.ParseString(raw)
	if err == nil {
		resp, err := s.regSvc.Get(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	// Reference codes double as lookup keys so a confirmation email is
	// enough to check status.
	resp, err := s.regSvc.GetByReference(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandleVerifyRegistration(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, registrationdomain.ErrInvalidID)
		return
	}

	resp, err := s.regSvc.Verify(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
