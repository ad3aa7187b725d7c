package signcode

import "strconv"

var (
	qrFieldOrder     = []string{"entitlementId", "voucherCode", "ts", "nonce"}
	dealerFieldOrder = []string{"dealerId", "ts", "nonce"}
)

// QRClaims are the verified contents of a redeemable QR payload.
type QRClaims struct {
	EntitlementID string
	VoucherCode   string
	Nonce         string
}

// BuildQRPayload signs the QR canonical form
// `entitlementId=..&voucherCode=..&ts=..&nonce=..`.
func BuildQRPayload(secret, entitlementID, voucherCode string, tsUnix int64, nonce string) string {
	return BuildPayload(secret, []Field{
		{Name: "entitlementId", Value: entitlementID},
		{Name: "voucherCode", Value: voucherCode},
		{Name: "ts", Value: strconv.FormatInt(tsUnix, 10)},
		{Name: "nonce", Value: nonce},
	})
}

func VerifyQRPayload(secret, payload string, nowUnix, maxSkewSeconds int64) (QRClaims, error) {
	values, err := VerifyPayload(secret, payload, qrFieldOrder, nowUnix, maxSkewSeconds)
	if err != nil {
		return QRClaims{}, err
	}
	return QRClaims{
		EntitlementID: values["entitlementId"],
		VoucherCode:   values["voucherCode"],
		Nonce:         values["nonce"],
	}, nil
}

// BuildDealerLink signs the dealer attribution canonical form
// `dealerId=..&ts=..&nonce=..`.
func BuildDealerLink(secret, dealerID string, tsUnix int64, nonce string) string {
	return BuildPayload(secret, []Field{
		{Name: "dealerId", Value: dealerID},
		{Name: "ts", Value: strconv.FormatInt(tsUnix, 10)},
		{Name: "nonce", Value: nonce},
	})
}

// VerifyDealerLink returns the attributed dealer id.
func VerifyDealerLink(secret, payload string, nowUnix, maxSkewSeconds int64) (string, error) {
	values, err := VerifyPayload(secret, payload, dealerFieldOrder, nowUnix, maxSkewSeconds)
	if err != nil {
		return "", err
	}
	return values["dealerId"], nil
}
