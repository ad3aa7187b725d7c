//go:build unit

package commands

import (
	"context"
	"errors"
	"time"

	"health-entitlement-engine/internal/domain/entitlement"
	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

// In-memory fakes implementing the unit-of-work ports. ConsumeUse and
// UpdateStatus reproduce the conditional-update semantics of the real
// repositories so the commands are exercised against the same contract.

type entRow struct {
	ent       *entitlement.Entitlement
	remaining int
	status    entitlement.Status
	activator *uuid.UUID
}

type fakeEntitlementRepo struct {
	rows      map[uuid.UUID]*entRow
	createErr error
}

func newFakeEntitlementRepo() *fakeEntitlementRepo {
	return &fakeEntitlementRepo{rows: make(map[uuid.UUID]*entRow)}
}

func (f *fakeEntitlementRepo) seed(ent *entitlement.Entitlement) {
	f.rows[ent.ID()] = &entRow{
		ent:       ent,
		remaining: ent.RemainingCount(),
		status:    ent.Status(),
		activator: ent.ActivatorID(),
	}
}

func (f *fakeEntitlementRepo) current(id uuid.UUID) *entitlement.Entitlement {
	row, ok := f.rows[id]
	if !ok {
		return nil
	}
	src := row.ent
	return entitlement.ReconstructEntitlement(
		src.ID(), src.Type(), src.ServiceType(), row.status,
		src.TotalCount(), row.remaining,
		src.VoucherCode(), src.QRPayload(),
		src.OwnerID(), src.OrderID(),
		src.PackageInstanceID(), row.activator,
		src.Scope(), src.ValidFrom(), src.ValidUntil(),
		src.CreatedAt(), src.UpdatedAt(),
	)
}

func (f *fakeEntitlementRepo) Create(_ context.Context, ent *entitlement.Entitlement) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.seed(ent)
	return nil
}

func (f *fakeEntitlementRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*entitlement.Entitlement, error) {
	ent := f.current(id)
	if ent == nil {
		return nil, infra.WrapRepoErr("entitlement not found", errors.New("no rows"), infra.KindNotFound)
	}
	return ent, nil
}

func (f *fakeEntitlementRepo) FindSiblingsForUpdate(_ context.Context, id uuid.UUID) ([]*entitlement.Entitlement, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, infra.WrapRepoErr("entitlement not found", errors.New("no rows"), infra.KindNotFound)
	}
	instID := row.ent.PackageInstanceID()
	if instID == nil {
		return []*entitlement.Entitlement{f.current(id)}, nil
	}
	var out []*entitlement.Entitlement
	for rid, r := range f.rows {
		other := r.ent.PackageInstanceID()
		if other != nil && *other == *instID {
			out = append(out, f.current(rid))
		}
	}
	return out, nil
}

func (f *fakeEntitlementRepo) ConsumeUse(_ context.Context, id uuid.UUID) (int, entitlement.Status, error) {
	row, ok := f.rows[id]
	if !ok || row.status != entitlement.StatusActive || row.remaining <= 0 {
		return 0, "", infra.WrapRepoErr("consume conflict", errors.New("no rows affected"), infra.KindConflict)
	}
	if row.ent.Type() == entitlement.TypeVoucher {
		row.remaining = 0
	} else {
		row.remaining--
	}
	if row.remaining == 0 {
		row.status = entitlement.StatusUsed
	}
	return row.remaining, row.status, nil
}

func (f *fakeEntitlementRepo) SetActivatorIfEmpty(_ context.Context, id, operatorID uuid.UUID) error {
	row, ok := f.rows[id]
	if !ok {
		return nil
	}
	if row.activator == nil {
		op := operatorID
		row.activator = &op
	}
	return nil
}

func (f *fakeEntitlementRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to entitlement.Status) error {
	row, ok := f.rows[id]
	if !ok || row.status != from {
		return infra.WrapRepoErr("status conflict", errors.New("no rows affected"), infra.KindConflict)
	}
	row.status = to
	return nil
}

type fakeOrderRepo struct {
	orders map[uuid.UUID]*shared.OrderSnapshot
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*shared.OrderSnapshot)}
}

func (f *fakeOrderRepo) seed(o *shared.OrderSnapshot) {
	f.orders[o.ID] = o
}

func (f *fakeOrderRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*shared.OrderSnapshot, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, infra.WrapRepoErr("order not found", errors.New("no rows"), infra.KindNotFound)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) FindByOutTradeNoForUpdate(_ context.Context, ref string) (*shared.OrderSnapshot, error) {
	for _, o := range f.orders {
		if o.OutTradeNo == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, infra.WrapRepoErr("order not found", errors.New("no rows"), infra.KindNotFound)
}

func (f *fakeOrderRepo) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time) error {
	o, ok := f.orders[id]
	if !ok {
		return infra.WrapRepoErr("order not found", errors.New("no rows"), infra.KindNotFound)
	}
	if o.PaidAt == nil {
		t := paidAt
		o.PaidAt = &t
		o.Status = shared.OrderStatusPaid
	}
	return nil
}

type fakePackageInstanceRepo struct {
	created []shared.PackageInstance
}

func (f *fakePackageInstanceRepo) Create(_ context.Context, inst shared.PackageInstance) error {
	f.created = append(f.created, inst)
	return nil
}

type fakeRedemptionRepo struct {
	records   []*entitlement.RedemptionRecord
	createErr error
}

func (f *fakeRedemptionRepo) Create(_ context.Context, rec *entitlement.RedemptionRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRedemptionRepo) successCountFor(ids []uuid.UUID) int {
	n := 0
	for _, rec := range f.records {
		if !rec.IsSuccess() {
			continue
		}
		for _, id := range ids {
			if rec.EntitlementID() == id {
				n++
			}
		}
	}
	return n
}

type fakeCommandReads struct {
	packages    map[uuid.UUID]*shared.PackageSnapshot
	venues      map[uuid.UUID]*shared.VenueSnapshot
	ents        *fakeEntitlementRepo
	redemptions *fakeRedemptionRepo
}

func (f *fakeCommandReads) PackageByID(_ context.Context, id uuid.UUID) (*shared.PackageSnapshot, error) {
	p, ok := f.packages[id]
	if !ok {
		return nil, infra.WrapRepoErr("package not found", errors.New("no rows"), infra.KindNotFound)
	}
	return p, nil
}

func (f *fakeCommandReads) VenueByID(_ context.Context, id uuid.UUID) (*shared.VenueSnapshot, error) {
	v, ok := f.venues[id]
	if !ok {
		return nil, infra.WrapRepoErr("venue not found", errors.New("no rows"), infra.KindNotFound)
	}
	return v, nil
}

func (f *fakeCommandReads) HasEntitlementsForOrder(_ context.Context, orderID uuid.UUID) (bool, error) {
	for _, row := range f.ents.rows {
		if row.ent.OrderID() == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCommandReads) SuccessfulRedemptionCount(_ context.Context, ids []uuid.UUID) (int, error) {
	return f.redemptions.successCountFor(ids), nil
}

type fakeTx struct {
	ents      *fakeEntitlementRepo
	orders    *fakeOrderRepo
	instances *fakePackageInstanceRepo
	reds      *fakeRedemptionRepo
	reads     *fakeCommandReads
}

func (t *fakeTx) Entitlements() shared.EntitlementRepository         { return t.ents }
func (t *fakeTx) Orders() shared.OrderRepository                     { return t.orders }
func (t *fakeTx) PackageInstances() shared.PackageInstanceRepository { return t.instances }
func (t *fakeTx) Redemptions() shared.RedemptionRepository           { return t.reds }
func (t *fakeTx) Reads() shared.CommandReads                         { return t.reads }
func (t *fakeTx) DB() db.DBTX                                        { return nil }

type fakeUoW struct {
	tx *fakeTx
}

func newFakeUoW() *fakeUoW {
	ents := newFakeEntitlementRepo()
	reds := &fakeRedemptionRepo{}
	tx := &fakeTx{
		ents:      ents,
		orders:    newFakeOrderRepo(),
		instances: &fakePackageInstanceRepo{},
		reds:      reds,
		reads: &fakeCommandReads{
			packages:    make(map[uuid.UUID]*shared.PackageSnapshot),
			venues:      make(map[uuid.UUID]*shared.VenueSnapshot),
			ents:        ents,
			redemptions: reds,
		},
	}
	return &fakeUoW{tx: tx}
}

func (u *fakeUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return fn(ctx, u.tx)
}

func (u *fakeUoW) WithinReadOnly(ctx context.Context, fn func(ctx context.Context, d db.DBTX) error) error {
	return fn(ctx, nil)
}
