package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/pawprintlabs/pawprint/internal/checkout/domain"
	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
)

type checkoutPetRequest struct {
	Name    string         `json:"name"`
	Profile map[string]any `json:"profile"`
}

type createCheckoutRequest struct {
	CheckoutRef  string               `json:"checkout_ref"`
	ContactEmail string               `json:"contact_email"`
	Pets         []checkoutPetRequest `json:"pets"`
}

// CreateCheckout records the pending orders for a checkout session before
// the customer is sent off to pay. One order per pet.
func (s *Server) CreateCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	pets := make([]orderdomain.PetInput, 0, len(req.Pets))
	for _, pet := range req.Pets {
		pets = append(pets, orderdomain.PetInput{
			Name:    strings.TrimSpace(pet.Name),
			Profile: pet.Profile,
		})
	}

	resp, err := s.orderSvc.CreateBatch(c.Request.Context(), orderdomain.CreateBatchRequest{
		CheckoutRef:  strings.TrimSpace(req.CheckoutRef),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		Pets:         pets,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type verifyCheckoutRequest struct {
	CheckoutRef string `json:"checkout_ref"`
	OrderToken  string `json:"order_token"`
}

// VerifyCheckout is called from the thank-you page, possibly many times for
// the same reference.
func (s *Server) VerifyCheckout(c *gin.Context) {
	var req verifyCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.VerifyAndGet(c.Request.Context(), checkoutdomain.VerifyRequest{
		CheckoutRef: strings.TrimSpace(req.CheckoutRef),
		OrderToken:  strings.TrimSpace(req.OrderToken),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
