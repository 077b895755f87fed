package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
)

type redeemRequest struct {
	Code         string         `json:"code"`
	ContactEmail string         `json:"contact_email"`
	PetName      string         `json:"pet_name"`
	PetProfile   map[string]any `json:"pet_profile"`
}

// Redeem creates an already-paid order from a promotional code and starts
// generation immediately.
func (s *Server) Redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Redeem(c.Request.Context(), orderdomain.RedeemRequest{
		Code:         strings.TrimSpace(req.Code),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		Pet: orderdomain.PetInput{
			Name:    strings.TrimSpace(req.PetName),
			Profile: req.PetProfile,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
