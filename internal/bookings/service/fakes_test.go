package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
	bookingerrors "tourbook/internal/bookings/errors"
	"tourbook/internal/bookings/validator"
	"tourbook/internal/inventory"
	sessionerrors "tourbook/internal/sessions/errors"
	tourerrors "tourbook/internal/tours/errors"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/events"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/notify"
	"tourbook/pkg/payment"
	"tourbook/pkg/ratelimit"
)

type memoryBookings struct {
	mu           sync.Mutex
	bookings     map[string]*model.Booking
	beforeUpdate func(id string)
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{bookings: make(map[string]*model.Booking)}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.StatusLog = slices.Clone(b.StatusLog)
	c.Assignments = slices.Clone(b.Assignments)
	if b.Cancellation != nil {
		cancellation := *b.Cancellation
		c.Cancellation = &cancellation
	}
	if b.CheckIn != nil {
		checkIn := *b.CheckIn
		c.CheckIn = &checkIn
	}
	return &c
}

func (m *memoryBookings) Create(_ context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Code == booking.Code {
			return fmt.Errorf("%w: %s", bookingerrors.ErrDuplicateCode, booking.Code)
		}
	}
	m.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (m *memoryBookings) FindByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingerrors.ErrNotFound, id)
	}
	return cloneBooking(b), nil
}

func (m *memoryBookings) FindBySession(_ context.Context, sessionID string, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		for _, a := range b.Assignments {
			if a.SessionID == sessionID {
				out = append(out, cloneBooking(b))
				break
			}
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	return out[:min(limit, len(out))], nil
}

func (m *memoryBookings) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	all, err := m.FindBySession(ctx, sessionID, 1<<30, 0)
	return int64(len(all)), err
}

func (m *memoryBookings) Update(_ context.Context, booking *model.Booking, expected model.BookingStatus) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(booking.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[booking.ID]
	if !ok || stored.Status != expected {
		return fmt.Errorf("%w: %s", bookingerrors.ErrStatusChanged, booking.ID)
	}
	m.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (m *memoryBookings) setStatus(id string, status model.BookingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[id].Status = status
}

func (m *memoryBookings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return fmt.Errorf("%w: %s", bookingerrors.ErrNotFound, id)
	}
	delete(m.bookings, id)
	return nil
}

func (m *memoryBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

type memoryOrders struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[string]*model.Order)}
}

func (m *memoryOrders) Create(_ context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *memoryOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingerrors.ErrOrderNotFound, id)
	}
	copied := *o
	return &copied, nil
}

func (m *memoryOrders) UpdateStatus(_ context.Context, id string, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", bookingerrors.ErrOrderNotFound, id)
	}
	o.Status = status
	return nil
}

func (m *memoryOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("%w: %s", bookingerrors.ErrOrderNotFound, id)
	}
	delete(m.orders, id)
	return nil
}

func (m *memoryOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// memorySessions enforces the version check the Mongo repository does. conflictFn lets a
// test force a lost race on a given session.
type memorySessions struct {
	mu         sync.Mutex
	sessions   map[string]*model.Session
	conflictFn func(id string) bool
}

func newMemorySessions(sessions ...*model.Session) *memorySessions {
	m := &memorySessions{sessions: make(map[string]*model.Session)}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *memorySessions) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sessionerrors.ErrNotFound, id)
	}
	copied := *s
	copied.Bookings = slices.Clone(s.Bookings)
	return &copied, nil
}

func (m *memorySessions) UpdateCapacity(_ context.Context, id string, version int64, capacity model.Capacity, bookings []model.SessionBooking) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", sessionerrors.ErrNotFound, id)
	}
	if m.conflictFn != nil && m.conflictFn(id) {
		return 0, fmt.Errorf("%w: %s", sessionerrors.ErrVersionConflict, id)
	}
	if s.Version != version {
		return 0, fmt.Errorf("%w: %s", sessionerrors.ErrVersionConflict, id)
	}
	s.Capacity = capacity
	s.Bookings = slices.Clone(bookings)
	if len(bookings) > 0 {
		s.ExpiresAt = nil
	}
	s.Version++
	return s.Version, nil
}

func (m *memorySessions) get(id string) *model.Session {
	s, _ := m.FindByID(context.Background(), id)
	return s
}

type memoryTours struct {
	mu          sync.Mutex
	tours       map[string]*model.Tour
	beforeApply func(variantID string)
}

func newMemoryTours(tours ...*model.Tour) *memoryTours {
	m := &memoryTours{tours: make(map[string]*model.Tour)}
	for _, t := range tours {
		m.tours[t.ID] = t
	}
	return m
}

func cloneTour(t *model.Tour) *model.Tour {
	c := *t
	c.Variants = make([]model.TicketVariant, len(t.Variants))
	for i, v := range t.Variants {
		v.Inventory.Transactions = slices.Clone(v.Inventory.Transactions)
		c.Variants[i] = v
	}
	return &c
}

func (m *memoryTours) FindByID(_ context.Context, id string) (*model.Tour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tourerrors.ErrNotFound, id)
	}
	return cloneTour(t), nil
}

func (m *memoryTours) ApplyInventory(_ context.Context, tourID, variantID string, expected model.Inventory, patches []model.Patch) error {
	if m.beforeApply != nil {
		m.beforeApply(variantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tours[tourID]
	if !ok {
		return fmt.Errorf("%w: %s", tourerrors.ErrNotFound, tourID)
	}
	v, ok := t.Variant(variantID)
	if !ok || v.Inventory.QtyOnHand != expected.QtyOnHand || v.Inventory.QtyCommitted != expected.QtyCommitted {
		return fmt.Errorf("%w: %s", tourerrors.ErrInventoryConflict, variantID)
	}
	return inventory.Apply(v, inventory.Result{Patches: patches})
}

// set stores a quantity change made outside the booking service.
func (m *memoryTours) set(tourID, variantID string, mutate func(*model.Inventory)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, _ := m.tours[tourID].Variant(variantID)
	mutate(&v.Inventory)
}

func (m *memoryTours) variant(tourID, variantID string) model.TicketVariant {
	t, _ := m.FindByID(context.Background(), tourID)
	v, _ := t.Variant(variantID)
	return *v
}

type stubPolicies struct {
	policies map[string]*model.ReturnPolicy
}

func (s stubPolicies) FindByID(_ context.Context, id string) (*model.ReturnPolicy, error) {
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tourerrors.ErrPolicyNotFound, id)
	}
	return p, nil
}

type stubIdentity struct {
	mu      sync.Mutex
	vendors map[string]*model.Vendor
	users   map[string]*model.User
}

func newStubIdentity(vendors ...*model.Vendor) *stubIdentity {
	s := &stubIdentity{vendors: make(map[string]*model.Vendor), users: make(map[string]*model.User)}
	for _, v := range vendors {
		s.vendors[v.ID] = v
	}
	return s
}

func (s *stubIdentity) GetVendor(_ context.Context, id string) (*model.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[id]
	if !ok {
		return nil, fmt.Errorf("vendor %s not found", id)
	}
	return v, nil
}

func (s *stubIdentity) EnsureUser(_ context.Context, email, name string) (*model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		copied := *u
		return &copied, false, nil
	}
	u := &model.User{ID: "user-" + email, Email: email, Name: name}
	s.users[email] = u
	copied := *u
	return &copied, true, nil
}

func (s *stubIdentity) SetStripeCustomer(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == userID {
			u.StripeCustomerID = customerID
			return nil
		}
	}
	return fmt.Errorf("user %s not found", userID)
}

type slotCall struct {
	sessionID string
	slots     int
}

type recordingWaitlist struct {
	mu        sync.Mutex
	slotCalls []slotCall
	converted []string
}

func (r *recordingWaitlist) ProcessSlotOpen(_ context.Context, sessionID string, slots int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slotCalls = append(r.slotCalls, slotCall{sessionID: sessionID, slots: slots})
	return slots, nil
}

func (r *recordingWaitlist) ConvertForCustomer(_ context.Context, sessionID, email, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converted = append(r.converted, sessionID+"/"+email+"/"+bookingID)
	return nil
}

type recordingResync struct {
	mu     sync.Mutex
	events []events.CapacityResync
}

func (r *recordingResync) RequestResync(_ context.Context, evt events.CapacityResync) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordingSender) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		out = append(out, m.Template)
	}
	return out
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

const (
	tourID   = "tour-1"
	vendorID = "vendor-1"
	policyID = "policy-1"
	adult    = "adult"
	family   = "family"
	customer = "jane@example.com"
)

func testTour() *model.Tour {
	return &model.Tour{
		ID:             tourID,
		VendorID:       vendorID,
		Name:           "Old Town Walk",
		Currency:       "EUR",
		ReturnPolicyID: policyID,
		Variants: []model.TicketVariant{
			{
				ID:          adult,
				Name:        "Adult",
				Price:       5000,
				PeopleCount: 1,
				Inventory:   model.Inventory{QtyOnHand: 100, TrackInventory: true},
			},
			{
				ID:          family,
				Name:        "Family",
				Price:       12000,
				PeopleCount: 4,
				Inventory:   model.Inventory{QtyOnHand: 100, TrackInventory: true},
			},
		},
	}
}

// testSession starts five days after testNow.
func testSession(id string, maxCapacity int, mode model.CapacityMode) *model.Session {
	return &model.Session{
		ID:        id,
		TourID:    tourID,
		Date:      "2026-03-06",
		StartTime: "10:00",
		EndTime:   "12:00",
		Capacity:  model.Capacity{Max: maxCapacity, Remaining: maxCapacity, Mode: mode},
		Version:   1,
	}
}

type harness struct {
	svc      *bookingService
	bookings *memoryBookings
	orders   *memoryOrders
	sessions *memorySessions
	tours    *memoryTours
	identity *stubIdentity
	waitlist *recordingWaitlist
	resync   *recordingResync
	gateway  *payment.MockGateway
	sender   *recordingSender
	limiter  *ratelimit.MemoryLimiter
	now      time.Time
}

func newHarness(t *testing.T, sessions ...*model.Session) *harness {
	t.Helper()
	log := logger.Discard()
	h := &harness{
		bookings: newMemoryBookings(),
		orders:   newMemoryOrders(),
		sessions: newMemorySessions(sessions...),
		tours:    newMemoryTours(testTour()),
		identity: newStubIdentity(&model.Vendor{ID: vendorID, Name: "Walks Ltd", StripeAccountID: "acct_123"}),
		waitlist: &recordingWaitlist{},
		resync:   &recordingResync{},
		gateway:  payment.NewMockGateway(),
		sender:   &recordingSender{},
		limiter:  ratelimit.NewMemoryLimiter(5, time.Hour),
		now:      testNow,
	}
	t.Cleanup(h.limiter.Stop)

	cfg := &config.Config{
		Log:                log,
		PlatformFeePercent: 5,
		BookingMaxAttempts: 3,
		DefaultRefundHours: 24,
	}
	deps := Dependencies{
		Bookings: h.bookings,
		Orders:   h.orders,
		Sessions: h.sessions,
		Tours:    h.tours,
		Policies: stubPolicies{policies: map[string]*model.ReturnPolicy{
			policyID: {ID: policyID, Tiers: []model.RefundTier{
				{DaysBefore: 7, Percentage: 100},
				{DaysBefore: 3, Percentage: 50},
				{DaysBefore: 0, Percentage: 0},
			}},
		}},
		Identity:  h.identity,
		Waitlist:  h.waitlist,
		Resync:    h.resync,
		Gateway:   h.gateway,
		Notifier:  h.sender,
		Limiter:   h.limiter,
		TxManager: pkgmongo.NoTransaction{},
	}
	h.svc = NewBookingService(deps, validator.NewBookingValidator(log), cfg).(*bookingService)
	h.svc.now = func() time.Time { return h.now }
	return h
}

func request(lines map[string][]TicketRequest) *CreateRequest {
	req := &CreateRequest{TourID: tourID, CustomerEmail: customer, CustomerName: "Jane"}
	ids := make([]string, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		req.Sessions = append(req.Sessions, SessionRequest{SessionID: id, Tickets: lines[id]})
	}
	return req
}
