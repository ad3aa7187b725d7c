package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	reqdto "health-entitlement-engine/internal/handler/dto/request"
	resdto "health-entitlement-engine/internal/handler/dto/response"
	"health-entitlement-engine/internal/handler/middleware"
	"health-entitlement-engine/internal/infra/metrics"
	"health-entitlement-engine/internal/pkg/token"
	"health-entitlement-engine/internal/usecase/commands"
	"health-entitlement-engine/internal/usecase/queries"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EntitlementHandler struct {
	redemption commands.RedemptionCommands
	transfer   commands.TransferCommands
	queries    queries.EntitlementQueries
	outcomes   shared.OutcomeCache
}

func NewEntitlementHandler(
	redemption commands.RedemptionCommands,
	transfer commands.TransferCommands,
	entQueries queries.EntitlementQueries,
	outcomes shared.OutcomeCache,
) *EntitlementHandler {
	return &EntitlementHandler{
		redemption: redemption,
		transfer:   transfer,
		queries:    entQueries,
		outcomes:   outcomes,
	}
}

// @Summary Redeem an entitlement
// @Description Consume one use of an entitlement at the operator's venue
// @Tags entitlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key for duplicate prevention"
// @Param id path string true "Entitlement ID"
// @Param request body reqdto.RedeemRequest true "Redemption request"
// @Success 200 {object} resdto.RedeemResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /entitlements/{id}/redeem [post]
func (h *EntitlementHandler) Redeem(c *gin.Context) {
	started := time.Now()

	operatorID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	venueID, ok := middleware.GetOperatorVenueID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Operator token with a venue binding required"})
		return
	}

	entitlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entitlement ID format"})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header required"})
		return
	}

	var req reqdto.RedeemRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	method := entitlement.RedemptionMethod(req.Method)
	if !method.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown redemption method"})
		return
	}

	if req.VenueID != nil && *req.VenueID != venueID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Operator not authorized for this venue"})
		return
	}

	if h.replayOutcome(c, "redeem", "operator", operatorID.String(), idempotencyKey) {
		return
	}

	result, err := h.redemption.Redeem(c.Request.Context(), commands.RedeemInput{
		EntitlementID: entitlementID,
		VenueID:       venueID,
		OperatorID:    operatorID,
		Method:        method,
		VoucherCode:   req.NormalizedVoucherCode(),
		QRPayload:     req.QRPayload,
	})
	if err != nil {
		status, msg := redeemErrorResponse(err)
		metrics.RecordRedemption("failure", redeemFailureLabel(err), time.Since(started).Seconds())
		h.storeOutcome(c, "redeem", "operator", operatorID.String(), idempotencyKey, shared.CachedOutcome{
			StatusCode: status,
			Error:      msg,
		})
		c.JSON(status, gin.H{"error": msg})
		return
	}

	metrics.RecordRedemption("success", "", time.Since(started).Seconds())

	response := resdto.FromRedeemResult(result)
	h.storeOutcomeJSON(c, "redeem", "operator", operatorID.String(), idempotencyKey, http.StatusOK, response)
	c.JSON(http.StatusOK, response)
}

// @Summary Transfer an entitlement set
// @Description Move a fully unconsumed entitlement set to a new owner
// @Tags entitlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key for duplicate prevention"
// @Param id path string true "Entitlement ID"
// @Param request body reqdto.TransferRequest true "Transfer request"
// @Success 200 {object} resdto.TransferResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /entitlements/{id}/transfer [post]
func (h *EntitlementHandler) Transfer(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	role, _ := middleware.GetActorRole(c)

	entitlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entitlement ID format"})
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header required"})
		return
	}

	var req reqdto.TransferRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if h.replayOutcome(c, "transfer", role, actorID.String(), idempotencyKey) {
		return
	}

	result, err := h.transfer.Transfer(c.Request.Context(), commands.TransferInput{
		EntitlementID: entitlementID,
		ActorID:       actorID,
		ActorRole:     role,
		TargetOwnerID: req.TargetOwnerID,
	})
	if err != nil {
		status, msg := transferErrorResponse(err)
		h.storeOutcome(c, "transfer", role, actorID.String(), idempotencyKey, shared.CachedOutcome{
			StatusCode: status,
			Error:      msg,
		})
		c.JSON(status, gin.H{"error": msg})
		return
	}

	response := resdto.FromTransferResult(result)
	h.storeOutcomeJSON(c, "transfer", role, actorID.String(), idempotencyKey, http.StatusOK, response)
	c.JSON(http.StatusOK, response)
}

// @Summary Refund an entitlement set
// @Description Mark a fully unconsumed entitlement set as refunded
// @Tags entitlements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entitlement ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /entitlements/{id}/refund [post]
func (h *EntitlementHandler) Refund(c *gin.Context) {
	entitlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entitlement ID format"})
		return
	}

	if err := h.transfer.Refund(c.Request.Context(), entitlementID); err != nil {
		status, msg := transferErrorResponse(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get entitlement
// @Description Get entitlement by ID; credentials are visible to the owner only
// @Tags entitlements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entitlement ID"
// @Success 200 {object} resdto.EntitlementResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /entitlements/{id} [get]
func (h *EntitlementHandler) GetEntitlement(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	role, _ := middleware.GetActorRole(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entitlement ID format"})
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entitlement not found"})
		return
	}

	switch {
	case view.OwnerID == actorID:
		c.JSON(http.StatusOK, resdto.FromEntitlementView(view))
	case role == token.RoleAdmin:
		c.JSON(http.StatusOK, resdto.FromEntitlementViewRedacted(view))
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// @Summary List own entitlements
// @Description List entitlements owned by the caller; admins may pass owner_id
// @Tags entitlements
// @Produce json
// @Security BearerAuth
// @Param owner_id query string false "Owner ID (admin only)"
// @Success 200 {array} resdto.EntitlementListResponse
// @Failure 401 {object} map[string]string
// @Router /entitlements [get]
func (h *EntitlementHandler) ListEntitlements(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	role, _ := middleware.GetActorRole(c)

	ownerID := actorID
	if ownerParam := c.Query("owner_id"); ownerParam != "" {
		if role != token.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		parsed, err := uuid.Parse(ownerParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner ID format"})
			return
		}
		ownerID = parsed
	}

	items, err := h.queries.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]*resdto.EntitlementListResponse, len(items))
	for i, item := range items {
		response[i] = resdto.FromEntitlementListItem(item)
	}
	c.JSON(http.StatusOK, response)
}

// @Summary List redemption records
// @Description List redemption attempts for an entitlement
// @Tags entitlements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entitlement ID"
// @Success 200 {array} resdto.RedemptionRecordResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /entitlements/{id}/records [get]
func (h *EntitlementHandler) ListRecords(c *gin.Context) {
	actorID, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	role, _ := middleware.GetActorRole(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entitlement ID format"})
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entitlement not found"})
		return
	}
	if view.OwnerID != actorID && role != token.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}

	records, err := h.queries.ListRecords(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]*resdto.RedemptionRecordResponse, len(records))
	for i, rec := range records {
		response[i] = resdto.FromRedemptionRecordView(rec)
	}
	c.JSON(http.StatusOK, response)
}

// replayOutcome answers from the idempotency cache when a previous attempt
// with the same key completed. Returns true when the response was written.
func (h *EntitlementHandler) replayOutcome(c *gin.Context, operation, actorType, actorID, key string) bool {
	cached, err := h.outcomes.Get(c.Request.Context(), operation, actorType, actorID, key)
	if err != nil || cached == nil {
		return false
	}

	c.Header("Idempotency-Replayed", "true")
	if cached.Error != "" {
		c.JSON(cached.StatusCode, gin.H{"error": cached.Error})
		return true
	}
	c.Data(cached.StatusCode, "application/json; charset=utf-8", cached.Data)
	return true
}

func (h *EntitlementHandler) storeOutcome(c *gin.Context, operation, actorType, actorID, key string, outcome shared.CachedOutcome) {
	// Fail-open cache: a write error is already logged downstream.
	_ = h.outcomes.Set(c.Request.Context(), operation, actorType, actorID, key, outcome)
}

func (h *EntitlementHandler) storeOutcomeJSON(c *gin.Context, operation, actorType, actorID, key string, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	h.storeOutcome(c, operation, actorType, actorID, key, shared.CachedOutcome{
		StatusCode: status,
		Success:    true,
		Data:       data,
	})
}

func redeemErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, commands.ErrEntitlementNotFound):
		return http.StatusNotFound, "Entitlement not found"
	case errors.Is(err, commands.ErrEntitlementNotActive):
		return http.StatusConflict, "Entitlement is not redeemable"
	case errors.Is(err, commands.ErrVenueNotFound):
		return http.StatusNotFound, "Venue not found"
	case errors.Is(err, commands.ErrServiceNotOffered):
		return http.StatusUnprocessableEntity, "Venue does not offer this service"
	case errors.Is(err, commands.ErrMethodNotAccepted):
		return http.StatusUnprocessableEntity, "Redemption method not accepted by venue"
	case errors.Is(err, commands.ErrVoucherCodeMismatch):
		return http.StatusUnprocessableEntity, "Voucher code does not match"
	case errors.Is(err, commands.ErrQRSignExpired):
		return http.StatusUnprocessableEntity, "QR code expired"
	case errors.Is(err, commands.ErrQRSignInvalid):
		return http.StatusUnprocessableEntity, "QR code invalid"
	case errors.Is(err, commands.ErrMissingCredential):
		return http.StatusBadRequest, "Redemption credential missing"
	case errors.Is(err, commands.ErrNotEligibleAtVenue):
		return http.StatusUnprocessableEntity, "Entitlement not eligible at this venue"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func redeemFailureLabel(err error) string {
	switch {
	case errors.Is(err, commands.ErrEntitlementNotFound):
		return "NOT_FOUND"
	case errors.Is(err, commands.ErrEntitlementNotActive):
		return "NOT_REDEEMABLE"
	case errors.Is(err, commands.ErrVenueNotFound):
		return "VENUE_NOT_FOUND"
	case errors.Is(err, commands.ErrServiceNotOffered):
		return "SERVICE_NOT_OFFERED"
	case errors.Is(err, commands.ErrMethodNotAccepted):
		return "METHOD_NOT_ACCEPTED"
	case errors.Is(err, commands.ErrVoucherCodeMismatch):
		return "VOUCHER_CODE_MISMATCH"
	case errors.Is(err, commands.ErrQRSignExpired):
		return "QR_SIGN_EXPIRED"
	case errors.Is(err, commands.ErrQRSignInvalid):
		return "QR_SIGN_INVALID"
	case errors.Is(err, commands.ErrMissingCredential):
		return "CREDENTIAL_MISSING"
	case errors.Is(err, commands.ErrNotEligibleAtVenue):
		return "NOT_ELIGIBLE_AT_VENUE"
	default:
		return "UNKNOWN"
	}
}

func transferErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, commands.ErrEntitlementNotFound):
		return http.StatusNotFound, "Entitlement not found"
	case errors.Is(err, commands.ErrNotOwner):
		return http.StatusForbidden, "Only the owner may transfer this entitlement"
	case errors.Is(err, commands.ErrSelfTransfer):
		return http.StatusBadRequest, "Cannot transfer to the current owner"
	case errors.Is(err, commands.ErrNotTransferable):
		return http.StatusConflict, "Entitlement set is no longer transferable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
