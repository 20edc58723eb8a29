// Package memstore is an in-memory dispatch store for tests. Transactions
// are serialized and rolled back on error.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/ports/dispatchtx"
)

// Store holds couriers and assignments.
type Store struct {
	mu          sync.Mutex
	couriers    map[uuid.UUID]domain.Courier
	assignments map[uuid.UUID]domain.Assignment

	// Contended makes ReserveCourier lose the race for couriers it reports true for.
	Contended func(courierID uuid.UUID) bool
	// FailUpdate makes UpdateAssignment fail when set.
	FailUpdate error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		couriers:    make(map[uuid.UUID]domain.Courier),
		assignments: make(map[uuid.UUID]domain.Assignment),
	}
}

// PutCourier stores c.
func (s *Store) PutCourier(c domain.Courier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.couriers[c.ID] = c
}

// PutAssignment stores a.
func (s *Store) PutAssignment(a domain.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
}

// Courier returns a copy of the stored courier.
func (s *Store) Courier(id uuid.UUID) (domain.Courier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	return c, ok
}

// Assignment returns a copy of the stored assignment.
func (s *Store) Assignment(id uuid.UUID) (domain.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	return a, ok
}

// Assignments returns all stored assignments.
func (s *Store) Assignments() []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	return out
}

// Get implements a courier reader.
func (s *Store) Get(_ context.Context, id uuid.UUID) (*domain.Courier, error) {
	c, ok := s.Courier(id)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// DispatchableWithin implements the matcher courier source.
func (s *Store) DispatchableWithin(_ context.Context, box geo.Box) ([]domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Courier
	for _, c := range s.couriers {
		if c.Dispatchable() && c.Location != nil && box.Contains(*c.Location) {
			out = append(out, c)
		}
	}
	return out, nil
}

// WithTx runs fn with exclusive access, restoring the previous state on error.
func (s *Store) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	couriers := clone(s.couriers)
	assignments := clone(s.assignments)
	if err := fn(txView{s}); err != nil {
		s.couriers, s.assignments = couriers, assignments
		return err
	}
	return nil
}

func clone[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// txView operates on the store while its lock is held.
type txView struct{ s *Store }

func (t txView) ReserveCourier(_ context.Context, id uuid.UUID) (bool, error) {
	if t.s.Contended != nil && t.s.Contended(id) {
		return false, nil
	}
	c, ok := t.s.couriers[id]
	if !ok || !c.Dispatchable() {
		return false, nil
	}
	c.IsAvailable = false
	t.s.couriers[id] = c
	return true, nil
}

func (t txView) InsertAssignment(_ context.Context, a *domain.Assignment) error {
	for _, existing := range t.s.assignments {
		if existing.OrderID == a.OrderID && !existing.Status.Terminal() {
			return apperr.ErrConflict
		}
	}
	t.s.assignments[a.ID] = *a
	return nil
}

func (t txView) GetAssignmentForUpdate(_ context.Context, id uuid.UUID) (*domain.Assignment, error) {
	a, ok := t.s.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t txView) ActiveAssignmentByOrderForUpdate(_ context.Context, orderID uuid.UUID) (*domain.Assignment, error) {
	for _, a := range t.s.assignments {
		if a.OrderID == orderID && !a.Status.Terminal() {
			return &a, nil
		}
	}
	return nil, nil
}

func (t txView) UpdateAssignment(_ context.Context, a *domain.Assignment) error {
	if t.s.FailUpdate != nil {
		return t.s.FailUpdate
	}
	if _, ok := t.s.assignments[a.ID]; !ok {
		return errors.New("assignment vanished")
	}
	t.s.assignments[a.ID] = *a
	return nil
}

func (t txView) CompleteDelivery(_ context.Context, courierID uuid.UUID, earnings float64, minutes *int) error {
	c, ok := t.s.couriers[courierID]
	if !ok {
		return errors.New("courier vanished")
	}
	prev := c.Stats.SuccessfulDeliveries
	c.Stats.TotalDeliveries++
	c.Stats.SuccessfulDeliveries++
	c.Stats.EarningsToday += earnings
	c.Stats.EarningsThisMonth += earnings
	if minutes != nil {
		avg := *minutes
		if c.Stats.AverageDeliveryMinutes != nil && prev > 0 {
			avg = (*c.Stats.AverageDeliveryMinutes*prev + *minutes) / (prev + 1)
		}
		c.Stats.AverageDeliveryMinutes = &avg
	}
	c.IsAvailable = true
	t.s.couriers[courierID] = c
	return nil
}

func (t txView) CloseUnsuccessful(_ context.Context, courierID uuid.UUID) error {
	c, ok := t.s.couriers[courierID]
	if !ok {
		return errors.New("courier vanished")
	}
	c.Stats.TotalDeliveries++
	c.IsAvailable = true
	t.s.couriers[courierID] = c
	return nil
}
