package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"trip-dispatch/internal/domain/driver"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/domain/offer"
	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/config"
	"trip-dispatch/internal/general/logger"
	"trip-dispatch/internal/ports"
)

// ----- in-memory fakes -----

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memTrips struct {
	mu   sync.Mutex
	byID map[string]*trip.Trip
	seq  int
}

func newMemTrips() *memTrips {
	return &memTrips{byID: make(map[string]*trip.Trip)}
}

func cloneTrip(t *trip.Trip) *trip.Trip {
	c := *t
	return &c
}

func (m *memTrips) Create(ctx context.Context, t *trip.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("trip-%d", m.seq)
	m.byID[t.ID] = cloneTrip(t)
	return nil
}

func (m *memTrips) GetByID(ctx context.Context, id string) (*trip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	return cloneTrip(t), nil
}

func (m *memTrips) UpdateStatus(ctx context.Context, id string, expected, next trip.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return trip.ErrNotFound
	}
	if t.Status != expected {
		return trip.ErrStaleTransition
	}
	t.Status = next
	switch next {
	case trip.StatusArrived:
		if t.ArrivedAt == nil {
			stamp := at
			t.ArrivedAt = &stamp
		}
	case trip.StatusStarted:
		stamp := at
		t.StartedAt = &stamp
	case trip.StatusCompleted:
		stamp := at
		t.CompletedAt = &stamp
	}
	t.UpdatedAt = at
	return nil
}

func (m *memTrips) Accept(ctx context.Context, tripID, driverID string, finalPrice float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[tripID]
	if !ok {
		return trip.ErrNotFound
	}
	if t.Status != trip.StatusRequested {
		return trip.ErrAlreadyAccepted
	}
	t.Status = trip.StatusAccepted
	t.DriverID = &driverID
	t.FinalPrice = &finalPrice
	stamp := at
	t.AcceptedAt = &stamp
	t.UpdatedAt = at
	return nil
}

func (m *memTrips) Cancel(ctx context.Context, tripID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[tripID]
	if !ok {
		return trip.ErrNotFound
	}
	switch t.Status {
	case trip.StatusCancelled:
		return nil
	case trip.StatusStarted, trip.StatusCompleted:
		return trip.ErrStaleTransition
	}
	t.Status = trip.StatusCancelled
	stamp := at
	t.CancelledAt = &stamp
	if reason != "" {
		t.CancellationReason = &reason
	}
	t.UpdatedAt = at
	return nil
}

func (m *memTrips) ListRequested(ctx context.Context, limit int) ([]*trip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*trip.Trip
	for _, t := range m.byID {
		if t.Status == trip.StatusRequested {
			out = append(out, cloneTrip(t))
		}
	}
	return out, nil
}

type memOffers struct {
	mu   sync.Mutex
	byID map[string]*offer.Offer
	seq  int
}

func newMemOffers() *memOffers {
	return &memOffers{byID: make(map[string]*offer.Offer)}
}

func (m *memOffers) Upsert(ctx context.Context, o *offer.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.TripID == o.TripID && existing.DriverID == o.DriverID {
			existing.Price = o.Price
			existing.State = offer.StateOpen
			o.ID = existing.ID
			return nil
		}
	}
	m.seq++
	o.ID = fmt.Sprintf("offer-%d", m.seq)
	c := *o
	m.byID[o.ID] = &c
	return nil
}

func (m *memOffers) GetByID(ctx context.Context, id string) (*offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, offer.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *memOffers) transition(id string, next offer.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return offer.ErrNotFound
	}
	if o.State != offer.StateOpen {
		return offer.ErrNotOpen
	}
	o.State = next
	return nil
}

func (m *memOffers) Reject(ctx context.Context, offerID string) error {
	return m.transition(offerID, offer.StateRejected)
}

func (m *memOffers) MarkAccepted(ctx context.Context, offerID string) error {
	return m.transition(offerID, offer.StateAccepted)
}

func (m *memOffers) VoidOpenForTrip(ctx context.Context, tripID, winningOfferID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.TripID == tripID && o.ID != winningOfferID && o.State == offer.StateOpen {
			o.State = offer.StateVoid
		}
	}
	return nil
}

func (m *memOffers) ListOpenForTrip(ctx context.Context, tripID string) ([]*offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*offer.Offer
	for _, o := range m.byID {
		if o.TripID == tripID && o.State == offer.StateOpen {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (m *memOffers) stateOf(t *testing.T, id string) offer.State {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		t.Fatalf("offer %s not found", id)
	}
	return o.State
}

type memEvents struct {
	mu     sync.Mutex
	events []*trip.Event
}

func (m *memEvents) Append(ctx context.Context, e *trip.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

type memPresence struct {
	mu   sync.Mutex
	pool map[string]driver.Presence
}

func newMemPresence() *memPresence {
	return &memPresence{pool: make(map[string]driver.Presence)}
}

func (m *memPresence) SetOnline(ctx context.Context, driverID string, loc geo.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool[driverID] = driver.Presence{DriverID: driverID, Online: true, HasFix: true, Location: loc, LastFixAt: time.Now()}
	return nil
}

func (m *memPresence) SetOffline(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pool, driverID)
	return nil
}

func (m *memPresence) UpdateLocation(ctx context.Context, driverID string, loc geo.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pool[driverID]; ok {
		p.Location = loc
		p.LastFixAt = time.Now()
		m.pool[driverID] = p
	}
	return nil
}

func (m *memPresence) Nearby(ctx context.Context, center geo.Coordinate, radiusKM float64, limit int) ([]driver.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []driver.Presence
	for _, p := range m.pool {
		if geo.HaversineKM(p.Location, center) <= radiusKM {
			out = append(out, p)
		}
	}
	return out, nil
}

type pubRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (p *pubRecorder) Publish(exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, exchange+"/"+routingKey)
	return nil
}

type rtRecorder struct {
	mu     sync.Mutex
	topics map[string]int
}

func newRTRecorder() *rtRecorder {
	return &rtRecorder{topics: make(map[string]int)}
}

func (r *rtRecorder) Publish(topic string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic]++
}

func (r *rtRecorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics[topic]
}

// ----- harness -----

type harness struct {
	svc      ports.DispatchService
	trips    *memTrips
	offers   *memOffers
	presence *memPresence
	realtime *rtRecorder
}

func newHarness() *harness {
	cfg := &config.Config{}
	cfg.Dispatch.RadiusKM = 5
	cfg.Dispatch.FallbackRadiusKM = 50
	cfg.Dispatch.PollIntervalSeconds = 3
	cfg.Dispatch.FreeWaitingMinutes = 5

	trips := newMemTrips()
	offers := newMemOffers()
	presence := newMemPresence()
	realtime := newRTRecorder()

	svc := NewDispatchService(
		logger.New("test"),
		cfg,
		fakeUOW{},
		trips,
		offers,
		&memEvents{},
		presence,
		&pubRecorder{},
		realtime,
		nil,
	)
	return &harness{svc: svc, trips: trips, offers: offers, presence: presence, realtime: realtime}
}

func (h *harness) requestTrip(t *testing.T) ports.RequestTripResult {
	t.Helper()
	res, err := h.svc.RequestTrip(context.Background(), ports.RequestTripInput{
		CustomerID:           "customer-1",
		PickupLatitude:       40.0,
		PickupLongitude:      69.0,
		PickupAddress:        "Main Sq 1",
		DestinationLatitude:  40.1,
		DestinationLongitude: 69.1,
		DestinationAddress:   "Airport",
		RequestedPrice:       12.50,
		PaymentMethod:        "CARD",
	})
	if err != nil {
		t.Fatalf("request trip failed: %v", err)
	}
	return res
}

// ----- tests -----

func TestRequestTrip_NotifiesDriversWithinRadius(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	pickup := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}

	// three online drivers at roughly 2, 4.5 and 7 km from pickup
	for i, km := range []float64{2.0, 4.5, 7.0} {
		loc := geo.Coordinate{Latitude: pickup.Latitude + km/111.194926644, Longitude: pickup.Longitude}
		if err := h.svc.GoOnline(ctx, fmt.Sprintf("driver-%d", i+1), loc.Latitude, loc.Longitude); err != nil {
			t.Fatalf("go online: %v", err)
		}
	}

	res := h.requestTrip(t)
	if res.CandidatesNotified != 2 {
		t.Fatalf("expected 2 candidates within 5km, got %d", res.CandidatesNotified)
	}
	if h.realtime.count("driver-inbox:driver-1") != 1 || h.realtime.count("driver-inbox:driver-2") != 1 {
		t.Fatal("both in-radius drivers must receive a new_trip event")
	}
	if h.realtime.count("driver-inbox:driver-3") != 0 {
		t.Fatal("driver outside the radius must not be notified")
	}
}

func TestRequestTrip_NoDriversNearby(t *testing.T) {
	h := newHarness()

	res := h.requestTrip(t)
	if res.CandidatesNotified != 0 {
		t.Fatalf("expected zero candidates, got %d", res.CandidatesNotified)
	}
	if res.Message == "" {
		t.Fatal("zero candidates must be reported via the message field, not an error")
	}
	if res.Status != "REQUESTED" {
		t.Fatalf("trip must stay open, got %s", res.Status)
	}
}

func TestAcceptOffer_ConcurrentAcceptsSingleWinner(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	const n = 16
	offerIDs := make([]string, n)
	for i := range n {
		sub, err := h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{
			TripID:   res.TripID,
			DriverID: fmt.Sprintf("driver-%d", i),
			Price:    10.0 + float64(i),
		})
		if err != nil {
			t.Fatalf("submit offer %d: %v", i, err)
		}
		offerIDs[i] = sub.OfferID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.AcceptOffer(ctx, res.TripID, offerIDs[i])
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	winnerIdx := -1
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
			winnerIdx = i
		case errors.Is(err, trip.ErrAlreadyAccepted), errors.Is(err, offer.ErrNotOpen):
			conflicts++
		default:
			t.Fatalf("unexpected error from accept %d: %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one accept must win, got %d", wins)
	}
	if conflicts != n-1 {
		t.Fatalf("expected %d conflicts, got %d", n-1, conflicts)
	}

	got, err := h.svc.GetTrip(ctx, res.TripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.Status != trip.StatusAccepted {
		t.Fatalf("trip must be ACCEPTED, got %s", got.Status)
	}
	if got.DriverID == nil || *got.DriverID != fmt.Sprintf("driver-%d", winnerIdx) {
		t.Fatalf("assigned driver must match the winning offer")
	}

	// the winner's offer is accepted, every other offer is closed
	if st := h.offers.stateOf(t, offerIDs[winnerIdx]); st != offer.StateAccepted {
		t.Fatalf("winning offer state = %s", st)
	}
	for i, id := range offerIDs {
		if i == winnerIdx {
			continue
		}
		if st := h.offers.stateOf(t, id); st == offer.StateOpen {
			t.Fatalf("offer %s still open after settlement", id)
		}
	}
}

func TestSubmitOffer_OnClosedTrip(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	sub, err := h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{TripID: res.TripID, DriverID: "driver-1", Price: 11})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.AcceptOffer(ctx, res.TripID, sub.OfferID); err != nil {
		t.Fatal(err)
	}

	_, err = h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{TripID: res.TripID, DriverID: "driver-2", Price: 9})
	if !errors.Is(err, trip.ErrAlreadyAccepted) {
		t.Fatalf("expected ErrAlreadyAccepted, got %v", err)
	}
}

func TestUpdateTripStatus_ProgressAndDuplicates(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	sub, err := h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{TripID: res.TripID, DriverID: "driver-1", Price: 11})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.AcceptOffer(ctx, res.TripID, sub.OfferID); err != nil {
		t.Fatal(err)
	}

	if err := h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusArrived, "driver-1"); err != nil {
		t.Fatalf("arrive: %v", err)
	}

	// a duplicated ARRIVED report must fail its precondition, not re-apply
	err = h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusArrived, "driver-1")
	if !errors.Is(err, trip.ErrStaleTransition) {
		t.Fatalf("duplicate arrive: expected ErrStaleTransition, got %v", err)
	}

	got, _ := h.svc.GetTrip(ctx, res.TripID)
	firstArrival := got.ArrivedAt
	if firstArrival == nil {
		t.Fatal("arrived_at must be stamped")
	}

	if err := h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusStarted, "driver-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusCompleted, "driver-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ = h.svc.GetTrip(ctx, res.TripID)
	if got.Status != trip.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if !got.ArrivedAt.Equal(*firstArrival) {
		t.Fatal("arrived_at must keep its first value")
	}
}

func TestUpdateTripStatus_WrongDriver(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	sub, _ := h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{TripID: res.TripID, DriverID: "driver-1", Price: 11})
	if _, err := h.svc.AcceptOffer(ctx, res.TripID, sub.OfferID); err != nil {
		t.Fatal(err)
	}

	err := h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusArrived, "driver-2")
	if !errors.Is(err, trip.ErrNoDriverAssigned) {
		t.Fatalf("expected ErrNoDriverAssigned, got %v", err)
	}
}

func TestCancelTrip_IdempotentAndGuarded(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	first, err := h.svc.CancelTrip(ctx, res.TripID, "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != "CANCELLED" {
		t.Fatalf("expected CANCELLED, got %s", first.Status)
	}

	// cancelling again succeeds without changing anything
	if _, err := h.svc.CancelTrip(ctx, res.TripID, "again"); err != nil {
		t.Fatalf("repeat cancel must be idempotent: %v", err)
	}
}

func TestCancelTrip_BlockedOnceUnderway(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	sub, _ := h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{TripID: res.TripID, DriverID: "driver-1", Price: 11})
	if _, err := h.svc.AcceptOffer(ctx, res.TripID, sub.OfferID); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusArrived, "driver-1"); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.UpdateTripStatus(ctx, res.TripID, trip.StatusStarted, "driver-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.CancelTrip(ctx, res.TripID, "too late"); !errors.Is(err, trip.ErrStaleTransition) {
		t.Fatalf("cancel after start must fail the precondition, got %v", err)
	}
}

func TestNextTripForDriver_PollingFallback(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first := h.requestTrip(t)
	second := h.requestTrip(t)

	// poll from a point slightly north of the shared pickup
	near, err := h.svc.NextTripForDriver(ctx, 40.01, 69.0, nil)
	if err != nil {
		t.Fatalf("next trip: %v", err)
	}
	if near == nil {
		t.Fatal("expected an open trip within the fallback radius")
	}
	// both trips share a pickup; the older request wins the distance tie
	if near.Trip.ID != first.TripID {
		t.Fatalf("expected the older trip %s, got %s", first.TripID, near.Trip.ID)
	}

	// the caller's ignore set filters the already-seen trip for this poll only
	next, err := h.svc.NextTripForDriver(ctx, 40.01, 69.0, []string{first.TripID})
	if err != nil {
		t.Fatalf("next trip with ignore: %v", err)
	}
	if next == nil || next.Trip.ID != second.TripID {
		t.Fatalf("expected trip %s after ignoring %s, got %+v", second.TripID, first.TripID, next)
	}

	// nothing in range from the far side of the world
	far, err := h.svc.NextTripForDriver(ctx, -40.0, -110.0, nil)
	if err != nil {
		t.Fatalf("far poll: %v", err)
	}
	if far != nil {
		t.Fatalf("expected no trip in range, got %+v", far)
	}
}

func TestListOpenOffers_CheapestFirstAndScoped(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	res := h.requestTrip(t)

	for driverID, price := range map[string]float64{"driver-1": 14, "driver-2": 9, "driver-3": 11} {
		if _, err := h.svc.SubmitOffer(ctx, ports.SubmitOfferInput{TripID: res.TripID, DriverID: driverID, Price: price}); err != nil {
			t.Fatalf("submit %s: %v", driverID, err)
		}
	}

	open, err := h.svc.ListOpenOffers(ctx, res.TripID)
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(open) != 3 {
		t.Fatalf("expected 3 open offers, got %d", len(open))
	}
	for i := 1; i < len(open); i++ {
		if open[i-1].Price > open[i].Price {
			t.Fatalf("offers not sorted cheapest first: %v then %v", open[i-1].Price, open[i].Price)
		}
	}

	if _, err := h.svc.ListOpenOffers(ctx, "trip-missing"); !errors.Is(err, trip.ErrNotFound) {
		t.Fatalf("missing trip: expected ErrNotFound, got %v", err)
	}
}
