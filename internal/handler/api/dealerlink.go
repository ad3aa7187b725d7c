package api

import (
	"errors"
	"net/http"

	reqdto "health-entitlement-engine/internal/handler/dto/request"
	resdto "health-entitlement-engine/internal/handler/dto/response"
	"health-entitlement-engine/internal/pkg/clock"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/signcode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DealerLinkHandler signs and verifies dealer attribution links.
type DealerLinkHandler struct {
	signing config.SigningConfig
	clock   clock.Clock
}

func NewDealerLinkHandler(signing config.SigningConfig, clk clock.Clock) *DealerLinkHandler {
	return &DealerLinkHandler{signing: signing, clock: clk}
}

// @Summary Sign a dealer link
// @Description Produce a signed attribution payload for a dealer
// @Tags dealer-links
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.SignDealerLinkRequest true "Dealer link request"
// @Success 200 {object} resdto.DealerLinkResponse
// @Failure 400 {object} map[string]string
// @Router /dealer-links [post]
func (h *DealerLinkHandler) Sign(c *gin.Context) {
	var req reqdto.SignDealerLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	payload := signcode.BuildDealerLink(
		h.signing.DealerSecret, req.DealerID, h.clock.Now().Unix(), uuid.NewString(),
	)
	c.JSON(http.StatusOK, resdto.DealerLinkResponse{Payload: payload})
}

// @Summary Verify a dealer link
// @Description Check a dealer attribution payload and return the dealer it names
// @Tags dealer-links
// @Accept json
// @Produce json
// @Param request body reqdto.VerifyDealerLinkRequest true "Verification request"
// @Success 200 {object} resdto.DealerLinkVerifyResponse
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /dealer-links/verify [post]
func (h *DealerLinkHandler) Verify(c *gin.Context) {
	var req reqdto.VerifyDealerLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	dealerID, err := signcode.VerifyDealerLink(
		h.signing.DealerSecret, req.Payload,
		h.clock.Now().Unix(), int64(h.signing.MaxClockSkew.Seconds()),
	)
	if err != nil {
		if errors.Is(err, signcode.ErrSignExpired) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Link expired"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Link signature invalid"})
		return
	}
	c.JSON(http.StatusOK, resdto.DealerLinkVerifyResponse{DealerID: dealerID})
}
