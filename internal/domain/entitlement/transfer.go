package entitlement

// UsagePair is the (remaining, total) counter pair of one entitlement,
// used when judging a whole order or package instance at once.
type UsagePair struct {
	RemainingCount int
	TotalCount     int
}

// CanTransferOrRefund reports whether a set of entitlements is still fully
// unconsumed: no successful redemption has been recorded against it and
// every entitlement retains its full count. An empty set is not
// transferable.
func CanTransferOrRefund(successfulRedemptions int, pairs []UsagePair) bool {
	if len(pairs) == 0 {
		return false
	}
	if successfulRedemptions > 0 {
		return false
	}
	for _, p := range pairs {
		if p.RemainingCount != p.TotalCount {
			return false
		}
	}
	return true
}
