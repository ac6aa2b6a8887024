package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/google/uuid"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  Rows are validated
// with model.Booking.Validate both before insert and after scan, so callers
// only ever see well-formed records.  All timestamps are stored in UTC and
// stay dates are stored as DATE columns.
type BookingRepo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	now    func() time.Time
	newID  func() string
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB, getter *trmsql.CtxGetter) *BookingRepo {
	return &BookingRepo{
		db:     db,
		getter: getter,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

const bookingColumns = `id, property_id, guest_id, confirmation_code, status, check_in, check_out,
       number_of_nights, adults, children, price_per_night, subtotal, service_fee, taxes, total_price,
       contact_name, contact_email, contact_phone, special_requests,
       cancelled_at, cancelled_by, cancellation_reason, created_at, updated_at`

// Create inserts a new booking.  The ID and timestamps are assigned here;
// callers fill in everything else.  A collision on the confirmation code
// returns ErrDuplicateCode so the caller can regenerate it.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	now := r.now()
	b.ID = r.newID()
	b.CreatedAt, b.UpdatedAt = now, now
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid booking: %w", err)
	}
	const q = `INSERT INTO bookings (id, property_id, guest_id, confirmation_code, status, check_in, check_out,
                   number_of_nights, adults, children, price_per_night, subtotal, service_fee, taxes, total_price,
                   contact_name, contact_email, contact_phone, special_requests, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	_, err := tr.ExecContext(ctx, q,
		b.ID, b.PropertyID, b.GuestID, b.ConfirmationCode, b.Status,
		booking.FormatDay(b.CheckIn), booking.FormatDay(b.CheckOut),
		b.NumberOfNights, b.Adults, b.Children,
		b.PricePerNight, b.Subtotal, b.ServiceFee, b.Taxes, b.TotalPrice,
		b.ContactName, b.ContactEmail, b.ContactPhone, nullableString(b.SpecialRequests),
		now, now,
	)
	if err != nil {
		if isDuplicate(err, keyConfirmationCode) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

// GetByID returns a booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

// GetForUpdate returns a booking and locks its row for the rest of the
// transaction carried by ctx.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
}

// GetByConfirmationCode looks a booking up by its human-readable code.
func (r *BookingRepo) GetByConfirmationCode(ctx context.Context, code string) (*model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE confirmation_code = ?`, code)
}

// ListByGuest returns the guest's bookings, newest first.  An empty slice
// is returned when there are none.
func (r *BookingRepo) ListByGuest(ctx context.Context, guestID uint64) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE guest_id = ? ORDER BY created_at DESC`, guestID)
}

// ListByProperty returns every booking of a property, newest first.
func (r *BookingRepo) ListByProperty(ctx context.Context, propertyID uint64) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE property_id = ? ORDER BY created_at DESC`, propertyID)
}

// UpdateStatus writes the status and cancellation stamp of b.  It returns
// ErrNotFound when the row no longer exists.
func (r *BookingRepo) UpdateStatus(ctx context.Context, b *model.Booking) error {
	b.UpdatedAt = r.now()
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid booking: %w", err)
	}
	const q = `UPDATE bookings SET status = ?, cancelled_at = ?, cancelled_by = ?, cancellation_reason = ?, updated_at = ?
               WHERE id = ?`
	var cancelledBy interface{}
	if b.CancelledBy != nil {
		cancelledBy = *b.CancelledBy
	}
	var cancelledAt interface{}
	if b.CancelledAt != nil {
		cancelledAt = b.CancelledAt.UTC()
	}
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	res, err := tr.ExecContext(ctx, q, b.Status, cancelledAt, cancelledBy, nullableString(b.CancellationReason), b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteElapsed marks confirmed bookings whose checkout day is on or
// before today as completed and returns how many rows changed.
func (r *BookingRepo) CompleteElapsed(ctx context.Context, today time.Time) (int64, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	res, err := tr.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE status = ? AND check_out <= ?`,
		model.StatusCompleted, r.now(), model.StatusConfirmed, booking.FormatDay(today),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *BookingRepo) getOne(ctx context.Context, q string, arg interface{}) (*model.Booking, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	b, err := scanBooking(tr.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *BookingRepo) list(ctx context.Context, q string, arg interface{}) ([]model.Booking, error) {
	tr := r.getter.DefaultTrOrDB(ctx, r.db)
	rows, err := tr.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var b model.Booking
	var special, reason sql.NullString
	var cancelledAt sql.NullTime
	var cancelledBy sql.NullInt64
	if err := s.Scan(
		&b.ID, &b.PropertyID, &b.GuestID, &b.ConfirmationCode, &b.Status, &b.CheckIn, &b.CheckOut,
		&b.NumberOfNights, &b.Adults, &b.Children, &b.PricePerNight, &b.Subtotal, &b.ServiceFee, &b.Taxes, &b.TotalPrice,
		&b.ContactName, &b.ContactEmail, &b.ContactPhone, &special,
		&cancelledAt, &cancelledBy, &reason, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.CheckIn, b.CheckOut = booking.Truncate(b.CheckIn), booking.Truncate(b.CheckOut)
	if special.Valid {
		v := special.String
		b.SpecialRequests = &v
	}
	if reason.Valid {
		v := reason.String
		b.CancellationReason = &v
	}
	if cancelledAt.Valid {
		v := cancelledAt.Time.UTC()
		b.CancelledAt = &v
	}
	if cancelledBy.Valid {
		v := uint64(cancelledBy.Int64)
		b.CancelledBy = &v
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("booking %s: malformed row: %w", b.ID, err)
	}
	return &b, nil
}
