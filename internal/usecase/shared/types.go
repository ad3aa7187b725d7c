package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"

	"github.com/google/uuid"
)

const (
	OrderStatusPending  = "PENDING"
	OrderStatusPaid     = "PAID"
	OrderStatusRefunded = "REFUNDED"
)

type OrderSnapshot struct {
	ID         uuid.UUID
	BuyerID    uuid.UUID
	OutTradeNo string
	Status     string
	PaidAt     *time.Time
	Items      []OrderItemSnapshot
}

type OrderItemSnapshot struct {
	PackageID uuid.UUID
	Quantity  int
}

// PackageSnapshot is the purchasable template: each item row spawns one
// entitlement per package instance.
type PackageSnapshot struct {
	ID       uuid.UUID
	Name     string
	Items    []PackageItemSnapshot
	VenueIDs []uuid.UUID
	Regions  []string
}

type PackageItemSnapshot struct {
	EntitlementType entitlement.Type
	ServiceType     string
	TotalCount      int
}

type VenueSnapshot struct {
	ID               uuid.UUID
	Name             string
	CountryCode      string
	ProvinceCode     string
	CityCode         string
	Services         []string
	RedemptionMethod entitlement.RedemptionMethod
}

// PackageInstance is one purchased copy of a package; quantity N on an
// order item yields N instances.
type PackageInstance struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	PackageID uuid.UUID
	OwnerID   uuid.UUID
}

// CachedOutcome is the replayable HTTP-level result of a guarded operation.
type CachedOutcome struct {
	StatusCode int             `json:"status_code"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// OutcomeCache caches guarded operation outcomes keyed by
// (operation, actor, idempotency key). Implementations fail open: a read
// error reports a miss, never blocks the operation.
type OutcomeCache interface {
	Get(ctx context.Context, operation, actorType, actorID, key string) (*CachedOutcome, error)
	Set(ctx context.Context, operation, actorType, actorID, key string, outcome CachedOutcome) error
}

var (
	// ErrVerifyFailed covers missing headers, serial mismatch, and bad
	// signatures; the handler answers 401-equivalent.
	ErrVerifyFailed = errors.New("notification verification failed")
	// ErrUnsupportedAlgorithm marks a resource encrypted with anything but
	// the supported AEAD scheme; a client error, not an auth failure.
	ErrUnsupportedAlgorithm = errors.New("unsupported resource encryption algorithm")
)

// WebhookHeaders carries the payment provider's signature headers.
type WebhookHeaders struct {
	Timestamp string
	Nonce     string
	Signature string
	Serial    string
}

// EncryptedResource is the AEAD-encrypted payload inside a payment
// notification.
type EncryptedResource struct {
	Algorithm      string
	Ciphertext     string
	Nonce          string
	AssociatedData string
}

// PaymentVerifier authenticates provider notifications and opens their
// encrypted resource.
type PaymentVerifier interface {
	VerifySignature(headers WebhookHeaders, body []byte) error
	DecryptResource(res EncryptedResource) ([]byte, error)
}
