package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/property-booking/internal/booking"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/queue"
	"github.com/iliyamo/property-booking/internal/repository"
)

// memStore is an in-memory record store.  Transactions are serialised by
// txMu and roll back to a snapshot on error, which is what a property row
// lock plus rollback give us in MySQL.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	properties map[uint64]model.Property
	bookings   map[string]model.Booking
	blocked    map[uint64]map[string]*string
	nextID     int

	failApply error
	failList  error
}

func newMemStore() *memStore {
	return &memStore{
		properties: map[uint64]model.Property{},
		bookings:   map[string]model.Booking{},
		blocked:    map[uint64]map[string]*string{},
	}
}

func (m *memStore) addProperty(p model.Property) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = p
	if m.blocked[p.ID] == nil {
		m.blocked[p.ID] = map[string]*string{}
	}
}

// blockedDays returns the blocked-date set of a property.
func (m *memStore) blockedDays(propertyID uint64) booking.DateSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := booking.NewDateSet()
	for d := range m.blocked[propertyID] {
		out[d] = struct{}{}
	}
	return out
}

func (m *memStore) bookingByID(id string) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

type snapshot struct {
	bookings map[string]model.Booking
	blocked  map[uint64]map[string]*string
	nextID   int
}

func (m *memStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{bookings: map[string]model.Booking{}, blocked: map[uint64]map[string]*string{}, nextID: m.nextID}
	for k, v := range m.bookings {
		s.bookings[k] = v
	}
	for pid, days := range m.blocked {
		cp := map[string]*string{}
		for d, owner := range days {
			cp[d] = owner
		}
		s.blocked[pid] = cp
	}
	return s
}

func (m *memStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings, m.blocked, m.nextID = s.bookings, s.blocked, s.nextID
}

// Do implements TxManager.
func (m *memStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memProperties struct{ *memStore }

func (m memProperties) GetByID(_ context.Context, id uint64) (*model.Property, error) {
	m.mu.Lock()
	p, ok := m.properties[id]
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.BlockedDates = m.blockedDays(id)
	return &p, nil
}

func (m memProperties) GetForUpdate(ctx context.Context, id uint64) (*model.Property, error) {
	return m.GetByID(ctx, id)
}

type memBookings struct{ *memStore }

func (m memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.bookings {
		if other.ConfirmationCode == b.ConfirmationCode {
			return repository.ErrDuplicateCode
		}
	}
	m.nextID++
	b.ID = fmt.Sprintf("booking-%d", m.nextID)
	b.CreatedAt = time.Date(2025, 7, 1, 0, 0, m.nextID, 0, time.UTC)
	b.UpdatedAt = b.CreatedAt
	if err := b.Validate(); err != nil {
		return err
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m memBookings) GetByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m memBookings) GetForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return m.GetByID(ctx, id)
}

func (m memBookings) GetByConfirmationCode(_ context.Context, code string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ConfirmationCode == code {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memBookings) ListByGuest(_ context.Context, guestID uint64) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool { return b.GuestID == guestID }), nil
}

func (m memBookings) ListByProperty(_ context.Context, propertyID uint64) ([]model.Booking, error) {
	return m.filter(func(b model.Booking) bool { return b.PropertyID == propertyID }), nil
}

// filter returns matching bookings newest first.
func (m memBookings) filter(keep func(model.Booking) bool) []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (m memBookings) UpdateStatus(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := b.Validate(); err != nil {
		return err
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m memBookings) CompleteElapsed(_ context.Context, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.bookings {
		if b.Status == model.StatusConfirmed && !b.CheckOut.After(today) {
			b.Status = model.StatusCompleted
			m.bookings[id] = b
			n++
		}
	}
	return n, nil
}

type memBlocked struct{ *memStore }

func (m memBlocked) ListRows(_ context.Context, propertyID uint64) ([]model.BlockedDate, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	days := booking.NewDateSet()
	for d := range m.blocked[propertyID] {
		days[d] = struct{}{}
	}
	out := make([]model.BlockedDate, 0, days.Len())
	for _, d := range days.Sorted() {
		out = append(out, model.BlockedDate{PropertyID: propertyID, Day: d, BookingID: m.blocked[propertyID][d]})
	}
	return out, nil
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m memBlocked) Apply(_ context.Context, propertyID uint64, bookingID *string, before, after booking.DateSet) error {
	if m.failApply != nil {
		return m.failApply
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	days := m.blocked[propertyID]
	for _, d := range before.Difference(after) {
		if owner, ok := days[d]; ok && sameOwner(owner, bookingID) {
			delete(days, d)
		}
	}
	for _, d := range after.Difference(before) {
		if _, taken := days[d]; taken {
			return repository.ErrDateTaken
		}
		var owner *string
		if bookingID != nil {
			id := *bookingID
			owner = &id
		}
		days[d] = owner
	}
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []queue.Notification
}

func (r *recordingNotifier) Notify(n queue.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []queue.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Notification(nil), r.sent...)
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
