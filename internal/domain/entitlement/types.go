package entitlement

type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusUsed        Status = "USED"
	StatusExpired     Status = "EXPIRED"
	StatusRefunded    Status = "REFUNDED"
	StatusTransferred Status = "TRANSFERRED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusUsed, StatusExpired, StatusRefunded, StatusTransferred:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition may leave s. Every status
// except ACTIVE is terminal.
func (s Status) IsTerminal() bool {
	return s != StatusActive
}

// CanTransitionTo reports whether the status machine admits s -> target.
func (s Status) CanTransitionTo(target Status) bool {
	if s != StatusActive {
		return false
	}
	switch target {
	case StatusUsed, StatusExpired, StatusRefunded, StatusTransferred:
		return true
	default:
		return false
	}
}

type Type string

const (
	TypeVoucher        Type = "VOUCHER"
	TypeServicePackage Type = "SERVICE_PACKAGE"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case TypeVoucher, TypeServicePackage:
		return true
	default:
		return false
	}
}

type RedemptionMethod string

const (
	MethodQRCode      RedemptionMethod = "QR_CODE"
	MethodVoucherCode RedemptionMethod = "VOUCHER_CODE"
	MethodBoth        RedemptionMethod = "BOTH"
)

func (m RedemptionMethod) String() string {
	return string(m)
}

func (m RedemptionMethod) IsValid() bool {
	switch m {
	case MethodQRCode, MethodVoucherCode, MethodBoth:
		return true
	default:
		return false
	}
}

// Admits reports whether a venue configured with m accepts a presented
// method. A BOTH venue accepts any valid method; a single-method venue
// accepts only its own, so a presented BOTH is rejected there.
func (m RedemptionMethod) Admits(presented RedemptionMethod) bool {
	if !presented.IsValid() {
		return false
	}
	if m == MethodBoth {
		return true
	}
	return m == presented
}

type RecordStatus string

const (
	RecordSuccess RecordStatus = "SUCCESS"
	RecordFailed  RecordStatus = "FAILED"
)

func (s RecordStatus) String() string {
	return string(s)
}
