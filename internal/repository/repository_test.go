package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/model"
)

var now = time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func duplicate(key string) error {
	return &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry 'x' for key '" + key + "'"}
}

func TestBlockedDateApplyInsertsAndDeletes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlockedDateRepo(db, trmsql.DefaultCtxGetter)
	owner := "b-1"

	mock.ExpectExec(q("INSERT INTO blocked_dates (property_id, day, booking_id) VALUES (?, ?, ?),(?, ?, ?)")).
		WithArgs(1, "2025-08-01", owner, 1, "2025-08-02", owner).
		WillReturnResult(sqlmock.NewResult(0, 2))
	err := repo.Apply(context.Background(), 1, &owner, booking.NewDateSet(), booking.NewDateSet("2025-08-02", "2025-08-01"))
	require.NoError(t, err)

	mock.ExpectExec(q("DELETE FROM blocked_dates WHERE property_id = ? AND booking_id <=> ? AND day IN (?,?)")).
		WithArgs(1, owner, "2025-08-01", "2025-08-02").
		WillReturnResult(sqlmock.NewResult(0, 2))
	err = repo.Apply(context.Background(), 1, &owner, booking.NewDateSet("2025-08-01", "2025-08-02"), booking.NewDateSet())
	require.NoError(t, err)
}

func TestBlockedDateApplyHostRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlockedDateRepo(db, trmsql.DefaultCtxGetter)

	mock.ExpectExec(q("DELETE FROM blocked_dates")).
		WithArgs(3, nil, "2025-09-01").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO blocked_dates")).
		WithArgs(3, "2025-09-03", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Apply(context.Background(), 3, nil,
		booking.NewDateSet("2025-09-01", "2025-09-02"),
		booking.NewDateSet("2025-09-02", "2025-09-03"))
	require.NoError(t, err)
}

func TestBlockedDateApplyNoChange(t *testing.T) {
	db, _ := newMock(t)
	repo := NewBlockedDateRepo(db, trmsql.DefaultCtxGetter)
	set := booking.NewDateSet("2025-08-01")
	require.NoError(t, repo.Apply(context.Background(), 1, nil, set, set.Clone()))
}

func TestBlockedDateApplyCollision(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlockedDateRepo(db, trmsql.DefaultCtxGetter)
	owner := "b-2"

	mock.ExpectExec(q("INSERT INTO blocked_dates")).WillReturnError(duplicate(keyBlockedDay))
	err := repo.Apply(context.Background(), 1, &owner, booking.NewDateSet(), booking.NewDateSet("2025-08-01"))
	assert.ErrorIs(t, err, ErrDateTaken)

	boom := errors.New("connection reset")
	mock.ExpectExec(q("INSERT INTO blocked_dates")).WillReturnError(boom)
	err = repo.Apply(context.Background(), 1, &owner, booking.NewDateSet(), booking.NewDateSet("2025-08-01"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDateTaken)
}

func TestBlockedDateListRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlockedDateRepo(db, trmsql.DefaultCtxGetter)

	rows := sqlmock.NewRows([]string{"property_id", "day", "booking_id"}).
		AddRow(1, "2025-08-01", "b-1").
		AddRow(1, "2025-08-05", nil)
	mock.ExpectQuery(q("SELECT property_id, DATE_FORMAT(day, '%Y-%m-%d'), booking_id FROM blocked_dates")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.ListRows(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].BookingID)
	assert.Equal(t, "b-1", *got[0].BookingID)
	assert.Equal(t, "2025-08-05", got[1].Day)
	assert.Nil(t, got[1].BookingID)
}

var propertyColumns = []string{"id", "host_id", "title", "price_per_night", "max_guests", "require_host_approval", "created_at", "updated_at"}

func TestPropertyGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPropertyRepo(db, trmsql.DefaultCtxGetter, NewBlockedDateRepo(db, trmsql.DefaultCtxGetter))

	mock.ExpectQuery(q("FROM properties WHERE id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(propertyColumns).AddRow(1, 7, "Lake cabin", 280000, 4, true, now, now))
	mock.ExpectQuery(q("FROM blocked_dates")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"property_id", "day", "booking_id"}).AddRow(1, "2025-08-01", nil))

	p, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.HostID)
	assert.Equal(t, int64(280000), p.PricePerNight)
	assert.True(t, p.RequireHostApproval)
	assert.True(t, p.BlockedDates.Equal(booking.NewDateSet("2025-08-01")))
}

func TestPropertyNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPropertyRepo(db, trmsql.DefaultCtxGetter, NewBlockedDateRepo(db, trmsql.DefaultCtxGetter))

	mock.ExpectQuery(q("FROM properties WHERE id = ? FOR UPDATE")).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(propertyColumns))
	_, err := repo.GetForUpdate(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func newBookingRepo(db *sql.DB) *BookingRepo {
	r := NewBookingRepo(db, trmsql.DefaultCtxGetter)
	r.now = func() time.Time { return now }
	r.newID = func() string { return "0b7c3f4e-0000-4000-8000-000000000001" }
	return r
}

func newBooking() *model.Booking {
	return &model.Booking{
		PropertyID:       1,
		GuestID:          42,
		ConfirmationCode: "ODH1A2B3C4",
		Status:           model.StatusConfirmed,
		CheckIn:          time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:         time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC),
		NumberOfNights:   2,
		Adults:           2,
		PricePerNight:    280000,
		Subtotal:         560000,
		ServiceFee:       67200,
		Taxes:            28000,
		TotalPrice:       655200,
		ContactName:      "Ana",
		ContactEmail:     "ana@example.com",
	}
}

func TestBookingCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)
	b := newBooking()

	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs(
			"0b7c3f4e-0000-4000-8000-000000000001", 1, 42, "ODH1A2B3C4", "confirmed",
			"2025-08-01", "2025-08-03", 2, 2, 0,
			280000, 560000, 67200, 28000, 655200,
			"Ana", "ana@example.com", "", nil,
			now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), b))
	assert.Equal(t, "0b7c3f4e-0000-4000-8000-000000000001", b.ID)
	assert.Equal(t, now, b.CreatedAt)
}

func TestBookingCreateDuplicateCode(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)

	mock.ExpectExec(q("INSERT INTO bookings")).WillReturnError(duplicate(keyConfirmationCode))
	err := repo.Create(context.Background(), newBooking())
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestBookingCreateRejectsInvalidRecord(t *testing.T) {
	db, _ := newMock(t)
	repo := newBookingRepo(db)
	b := newBooking()
	b.ConfirmationCode = "short"
	assert.Error(t, repo.Create(context.Background(), b))
}

var bookingCols = []string{
	"id", "property_id", "guest_id", "confirmation_code", "status", "check_in", "check_out",
	"number_of_nights", "adults", "children", "price_per_night", "subtotal", "service_fee", "taxes", "total_price",
	"contact_name", "contact_email", "contact_phone", "special_requests",
	"cancelled_at", "cancelled_by", "cancellation_reason", "created_at", "updated_at",
}

func bookingRow(rows *sqlmock.Rows, id, status string, cancelledBy interface{}) *sqlmock.Rows {
	var cancelledAt interface{}
	if cancelledBy != nil {
		cancelledAt = now
	}
	return rows.AddRow(
		id, 1, 42, "ODH1A2B3C4", status,
		time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC),
		2, 2, 0, 280000, 560000, 67200, 28000, 655200,
		"Ana", "ana@example.com", "", nil,
		cancelledAt, cancelledBy, nil, now, now,
	)
}

func TestBookingGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)

	mock.ExpectQuery(q("FROM bookings WHERE id = ?")).
		WithArgs("b-1").
		WillReturnRows(bookingRow(sqlmock.NewRows(bookingCols), "b-1", "cancelled", 42))

	b, err := repo.GetByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, b.Status)
	assert.Equal(t, "2025-08-01", booking.FormatDay(b.CheckIn))
	require.NotNil(t, b.CancelledBy)
	assert.Equal(t, uint64(42), *b.CancelledBy)
	require.NotNil(t, b.CancelledAt)
	assert.Nil(t, b.SpecialRequests)

	mock.ExpectQuery(q("FROM bookings WHERE confirmation_code = ?")).
		WithArgs("ODH0000000").
		WillReturnRows(sqlmock.NewRows(bookingCols))
	_, err = repo.GetByConfirmationCode(context.Background(), "ODH0000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingMalformedRow(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)

	mock.ExpectQuery(q("FROM bookings WHERE id = ?")).
		WithArgs("b-1").
		WillReturnRows(bookingRow(sqlmock.NewRows(bookingCols), "b-1", "archived", nil))
	_, err := repo.GetByID(context.Background(), "b-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed row")
}

func TestBookingListByGuest(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)

	rows := sqlmock.NewRows(bookingCols)
	bookingRow(rows, "b-2", "confirmed", nil)
	bookingRow(rows, "b-1", "pending", nil)
	mock.ExpectQuery(q("FROM bookings WHERE guest_id = ? ORDER BY created_at DESC")).
		WithArgs(42).
		WillReturnRows(rows)

	list, err := repo.ListByGuest(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-2", list[0].ID)

	mock.ExpectQuery(q("FROM bookings WHERE property_id = ?")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	empty, err := repo.ListByProperty(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestBookingUpdateStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)
	b := newBooking()
	b.ID = "b-1"
	b.Status = model.StatusCancelled
	by := uint64(42)
	reason := "plans changed"
	b.CancelledAt, b.CancelledBy, b.CancellationReason = &now, &by, &reason

	mock.ExpectExec(q("UPDATE bookings SET status = ?")).
		WithArgs("cancelled", now, 42, reason, now, "b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), b))

	mock.ExpectExec(q("UPDATE bookings SET status = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), b), ErrNotFound)
}

func TestBookingCompleteElapsed(t *testing.T) {
	db, mock := newMock(t)
	repo := newBookingRepo(db)

	mock.ExpectExec(q("UPDATE bookings SET status = ?, updated_at = ? WHERE status = ? AND check_out <= ?")).
		WithArgs("completed", now, "confirmed", "2025-07-20").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.CompleteElapsed(context.Background(), booking.Truncate(now))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// The repositories must pick up the transaction the manager stores in ctx.
func TestRepositoriesJoinTransaction(t *testing.T) {
	db, mock := newMock(t)
	blocked := NewBlockedDateRepo(db, trmsql.DefaultCtxGetter)
	bookings := newBookingRepo(db)
	txm := manager.Must(trmsql.NewDefaultFactory(db))

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO blocked_dates")).WillReturnError(duplicate(keyBlockedDay))
	mock.ExpectRollback()

	err := txm.Do(context.Background(), func(ctx context.Context) error {
		b := newBooking()
		if err := bookings.Create(ctx, b); err != nil {
			return err
		}
		return blocked.Apply(ctx, b.PropertyID, &b.ID, booking.NewDateSet(), booking.NewDateSet("2025-08-01"))
	})
	assert.ErrorIs(t, err, ErrDateTaken)
}

func TestMySQLErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: mysqlDeadlock}))
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: mysqlLockWaitTimeout}))
	assert.False(t, IsRetryable(&mysql.MySQLError{Number: mysqlDuplicateEntry}))
	assert.False(t, IsRetryable(errors.New("deadlock")))

	assert.True(t, isDuplicate(duplicate(keyBlockedDay), keyBlockedDay))
	assert.True(t, isDuplicate(duplicate(keyBlockedDay), ""))
	assert.False(t, isDuplicate(duplicate(keyConfirmationCode), keyBlockedDay))
	assert.False(t, isDuplicate(errors.New("boom"), ""))
}
