package commands

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/pkg/clock"
	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/pkg/errs"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrWebhookUnauthenticated = errs.New("webhook authentication failed")
	ErrWebhookMalformed       = errs.New("webhook payload malformed")
)

type PaymentNotifyResult struct {
	OrderID            uuid.UUID
	OutTradeNo         string
	EntitlementsIssued int
	AlreadyProcessed   bool
}

type PaymentCommands interface {
	HandleWechatNotify(ctx context.Context, headers shared.WebhookHeaders, body []byte) (*PaymentNotifyResult, error)
}

type paymentUseCaseImpl struct {
	verifier shared.PaymentVerifier
	uow      shared.UnitOfWork
	clock    clock.Clock
	signing  config.SigningConfig
}

func NewPaymentUseCase(
	verifier shared.PaymentVerifier,
	uow shared.UnitOfWork,
	clk clock.Clock,
	signing config.SigningConfig,
) PaymentCommands {
	return &paymentUseCaseImpl{
		verifier: verifier,
		uow:      uow,
		clock:    clk,
		signing:  signing,
	}
}

type notifyEnvelope struct {
	ID           string `json:"id"`
	EventType    string `json:"event_type"`
	ResourceType string `json:"resource_type"`
	Resource     struct {
		Algorithm      string `json:"algorithm"`
		Ciphertext     string `json:"ciphertext"`
		Nonce          string `json:"nonce"`
		AssociatedData string `json:"associated_data"`
	} `json:"resource"`
}

type decryptedTransaction struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
	SuccessTime   string `json:"success_time"`
}

// HandleWechatNotify verifies, decrypts, and applies one payment
// notification: the referenced order is marked paid and its entitlements are
// generated, all inside one transaction. Replays of an already-paid order
// succeed without issuing anything new.
func (p *paymentUseCaseImpl) HandleWechatNotify(
	ctx context.Context,
	headers shared.WebhookHeaders,
	body []byte,
) (*PaymentNotifyResult, error) {
	if err := p.verifier.VerifySignature(headers, body); err != nil {
		return nil, errs.Mark(err, ErrWebhookUnauthenticated)
	}

	var envelope notifyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.Mark(err, ErrWebhookMalformed)
	}

	plaintext, err := p.verifier.DecryptResource(shared.EncryptedResource{
		Algorithm:      envelope.Resource.Algorithm,
		Ciphertext:     envelope.Resource.Ciphertext,
		Nonce:          envelope.Resource.Nonce,
		AssociatedData: envelope.Resource.AssociatedData,
	})
	if err != nil {
		if errors.Is(err, shared.ErrUnsupportedAlgorithm) {
			return nil, errs.Mark(err, ErrWebhookMalformed)
		}
		return nil, errs.Mark(err, ErrWebhookUnauthenticated)
	}

	var txn decryptedTransaction
	if err := json.Unmarshal(plaintext, &txn); err != nil {
		return nil, errs.Mark(err, ErrWebhookMalformed)
	}
	if txn.OutTradeNo == "" {
		return nil, ErrWebhookMalformed
	}

	paidAt := p.resolvePaidAt(txn.SuccessTime)

	var result *PaymentNotifyResult
	err = p.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		order, err := tx.Orders().FindByOutTradeNoForUpdate(ctx, txn.OutTradeNo)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return ErrOrderNotFound
			}
			return errs.Mark(err, ErrDatabaseOperationFailed)
		}

		if order.PaidAt == nil {
			if err := tx.Orders().MarkPaid(ctx, order.ID, paidAt); err != nil {
				return errs.Mark(err, ErrDatabaseOperationFailed)
			}
			t := paidAt
			order.PaidAt = &t
			order.Status = shared.OrderStatusPaid
		}

		created, existed, err := generateEntitlements(ctx, tx, order, p.clock.Now(), p.signing)
		if err != nil {
			return err
		}

		result = &PaymentNotifyResult{
			OrderID:            order.ID,
			OutTradeNo:         txn.OutTradeNo,
			EntitlementsIssued: created,
			AlreadyProcessed:   existed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *paymentUseCaseImpl) resolvePaidAt(successTime string) time.Time {
	if successTime != "" {
		if t, err := time.Parse(time.RFC3339, successTime); err == nil {
			return t
		}
	}
	return p.clock.Now()
}
