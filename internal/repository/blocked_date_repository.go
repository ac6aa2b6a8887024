package repository

import (
	"context"
	"database/sql"
	"strings"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/model"
)

// BlockedDateRepo provides access to the blocked_dates table.  Each row
// blocks one calendar day of one property and records which booking owns
// it (NULL for host-withheld days).  The UNIQUE (property_id, day) key
// turns two overlapping bookings into a constraint violation.
type BlockedDateRepo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
}

// NewBlockedDateRepo returns a new BlockedDateRepo bound to the given database.
func NewBlockedDateRepo(db *sql.DB, getter *trmsql.CtxGetter) *BlockedDateRepo {
	return &BlockedDateRepo{db: db, getter: getter}
}

// ListDays returns the blocked-date set of a property.
func (r *BlockedDateRepo) ListDays(ctx context.Context, propertyID uint64) (booking.DateSet, error) {
	rows, err := r.ListRows(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	set := make(booking.DateSet, len(rows))
	for _, row := range rows {
		set[row.Day] = struct{}{}
	}
	return set, nil
}

// ListRows returns every blocked day of a property ordered by day, with the
// owning booking ID when there is one.
func (r *BlockedDateRepo) ListRows(ctx context.Context, propertyID uint64) ([]model.BlockedDate, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	rows, err := tr.QueryContext(ctx,
		`SELECT property_id, DATE_FORMAT(day, '%Y-%m-%d'), booking_id FROM blocked_dates WHERE property_id = ? ORDER BY day`,
		propertyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BlockedDate, 0)
	for rows.Next() {
		var bd model.BlockedDate
		var bookingID sql.NullString
		if err := rows.Scan(&bd.PropertyID, &bd.Day, &bookingID); err != nil {
			return nil, err
		}
		if bookingID.Valid {
			id := bookingID.String
			bd.BookingID = &id
		}
		out = append(out, bd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply persists the transition of one owner's blocked days from before to
// after: days only in after are inserted, days only in before are deleted.
// bookingID selects the owner; nil means host-withheld rows.  Deletes are
// restricted to rows of that owner so releasing a stay can never unblock
// another booking's nights.  A collision on insert returns ErrDateTaken.
func (r *BlockedDateRepo) Apply(ctx context.Context, propertyID uint64, bookingID *string, before, after booking.DateSet) error {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)

	if removed := before.Difference(after); len(removed) > 0 {
		placeholders := make([]string, 0, len(removed))
		args := make([]interface{}, 0, len(removed)+2)
		args = append(args, propertyID, nullableString(bookingID))
		for _, d := range removed {
			placeholders = append(placeholders, "?")
			args = append(args, d)
		}
		query := `DELETE FROM blocked_dates WHERE property_id = ? AND booking_id <=> ? AND day IN (` +
			strings.Join(placeholders, ",") + `)`
		if _, err := tr.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if added := after.Difference(before); len(added) > 0 {
		query := `INSERT INTO blocked_dates (property_id, day, booking_id) VALUES `
		args := make([]interface{}, 0, len(added)*3)
		for i, d := range added {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, propertyID, d, nullableString(bookingID))
		}
		if _, err := tr.ExecContext(ctx, query, args...); err != nil {
			if isDuplicate(err, keyBlockedDay) {
				return ErrDateTaken
			}
			return err
		}
	}
	return nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
