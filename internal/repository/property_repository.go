package repository

import (
	"context"
	"database/sql"
	"errors"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"

	"github.com/iliyamo/property-booking/internal/model"
)

// PropertyRepo reads properties together with their blocked-date set.
// Listing management (create/edit) belongs to the host console and is not
// handled here.  Every method runs on the transaction carried by ctx when
// there is one, otherwise on the pool.
type PropertyRepo struct {
	db      *sql.DB
	getter  *trmsql.CtxGetter
	blocked *BlockedDateRepo
}

// NewPropertyRepo returns a PropertyRepo bound to db.  The blocked-date
// repository is used to materialise Property.BlockedDates.
func NewPropertyRepo(db *sql.DB, getter *trmsql.CtxGetter, blocked *BlockedDateRepo) *PropertyRepo {
	return &PropertyRepo{db: db, getter: getter, blocked: blocked}
}

const selectProperty = `SELECT id, host_id, title, price_per_night, max_guests, require_host_approval, created_at, updated_at
                        FROM properties WHERE id = ?`

// GetByID loads a property and its blocked dates.  ErrNotFound is returned
// when no row matches.
func (r *PropertyRepo) GetByID(ctx context.Context, id uint64) (*model.Property, error) {
	return r.get(ctx, selectProperty, id)
}

// GetForUpdate is GetByID with a row lock on the property.  It must run
// inside a transaction; concurrent bookings for the same property queue on
// this lock, so the blocked-date set read afterwards cannot go stale before
// commit.
func (r *PropertyRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Property, error) {
	return r.get(ctx, selectProperty+" FOR UPDATE", id)
}

func (r *PropertyRepo) get(ctx context.Context, q string, id uint64) (*model.Property, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	var p model.Property
	err := tr.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.HostID, &p.Title, &p.PricePerNight, &p.MaxGuests, &p.RequireHostApproval,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	days, err := r.blocked.ListDays(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.BlockedDates = days
	return &p, nil
}
