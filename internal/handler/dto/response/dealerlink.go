package response

type DealerLinkResponse struct {
	Payload string `json:"payload"`
}

type DealerLinkVerifyResponse struct {
	DealerID string `json:"dealerId"`
}
