package request

type SignDealerLinkRequest struct {
	DealerID string `json:"dealer_id" binding:"required"`
}

type VerifyDealerLinkRequest struct {
	Payload string `json:"payload" binding:"required"`
}
