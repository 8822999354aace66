package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	registrationdomain "github.com/openvenue/gatepass/internal/registration/domain"
)

// HandleConfirmOrder lets an operator force a reconciliation pass for
// one provider order, for the rare case where both the webhook and the
// client verify poll were lost.
func (s *Server) HandleConfirmOrder(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.paymentSvc.ConfirmOrder(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (s *Server) HandleRefundRegistration(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, registrationdomain.ErrInvalidID)
		return
	}

	if err := s.paymentSvc.Refund(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}
