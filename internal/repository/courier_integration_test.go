//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/repository"
)

type CourierRepositorySuite struct {
	suite.Suite
	pool *pgxpool.Pool
	repo *repository.CourierRepo
}

func (s *CourierRepositorySuite) SetupSuite() {
	s.Require().NotNil(tcPool, "tcPool must be initialized in TestMain")

	s.pool = tcPool
	s.repo = repository.NewCourierRepo(tcPool)
}

func (s *CourierRepositorySuite) SetupTest() {
	s.Require().NoError(truncateAll(context.Background(), s.pool))
}

var phoneSeq int

func newCourier(available bool) *domain.Courier {
	phoneSeq++
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Courier{
		ID:            uuid.New(),
		Name:          "Ravi",
		Phone:         fmt.Sprintf("+9198765%05d", phoneSeq),
		VehicleType:   domain.VehicleMotorcycle,
		VehicleNumber: "MH01AB1234",
		IsAvailable:   available,
		IsVerified:    available,
		IsActive:      true,
		Stats:         domain.CourierStats{Rating: 5},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *CourierRepositorySuite) create(c *domain.Courier) *domain.Courier {
	s.Require().NoError(s.repo.Create(context.Background(), c))
	return c
}

func (s *CourierRepositorySuite) place(c *domain.Courier, at domain.Coordinate) {
	ok, err := s.repo.RecordLocation(context.Background(), domain.LocationUpdate{
		CourierID: c.ID,
		Point:     at,
		Timestamp: time.Now().UTC(),
	})
	s.Require().NoError(err)
	s.Require().True(ok)
}

func (s *CourierRepositorySuite) TestCreateAndGet() {
	ctx := context.Background()
	email := "ravi@example.com"
	in := newCourier(false)
	in.Email = &email
	s.create(in)

	got, err := s.repo.Get(ctx, in.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)

	s.Equal(in.ID, got.ID)
	s.Equal(in.Name, got.Name)
	s.Equal(in.Phone, got.Phone)
	s.Equal(email, *got.Email)
	s.Equal(domain.VehicleMotorcycle, got.VehicleType)
	s.Nil(got.Location)
	s.Nil(got.Stats.AverageDeliveryMinutes)
	s.True(got.IsActive)
	s.False(got.IsAvailable)
}

func (s *CourierRepositorySuite) TestCreate_IsDuplicate() {
	first := s.create(newCourier(false))
	dup := newCourier(false)
	dup.Phone = first.Phone

	err := s.repo.Create(context.Background(), dup)
	s.ErrorIs(err, apperr.ErrConflict, "conflict for duplicate phone")
}

func (s *CourierRepositorySuite) TestGetNotFound() {
	got, err := s.repo.Get(context.Background(), uuid.New())
	s.Require().NoError(err)
	s.Require().Nil(got)
}

func (s *CourierRepositorySuite) TestVerifyDeactivateAvailability() {
	ctx := context.Background()
	c := s.create(newCourier(false))

	ok, err := s.repo.Verify(ctx, c.ID)
	s.Require().NoError(err)
	s.True(ok)
	got, _ := s.repo.Get(ctx, c.ID)
	s.True(got.IsVerified)
	s.True(got.IsAvailable)

	ok, err = s.repo.SetAvailability(ctx, c.ID, false)
	s.Require().NoError(err)
	s.True(ok)
	got, _ = s.repo.Get(ctx, c.ID)
	s.False(got.IsAvailable)

	ok, err = s.repo.Deactivate(ctx, c.ID)
	s.Require().NoError(err)
	s.True(ok)
	got, _ = s.repo.Get(ctx, c.ID)
	s.False(got.IsActive)

	ok, err = s.repo.Verify(ctx, uuid.New())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *CourierRepositorySuite) TestOpenAssignmentBlocksAvailability() {
	ctx := context.Background()
	c := s.create(newCourier(false))
	insertAssignment(s.T(), s.pool, c.ID, uuid.New(), domain.StatusAccepted)

	ok, err := s.repo.Verify(ctx, c.ID)
	s.Require().NoError(err)
	s.True(ok)
	got, _ := s.repo.Get(ctx, c.ID)
	s.True(got.IsVerified)
	s.False(got.IsAvailable, "verify must not free a busy courier")

	ok, err = s.repo.SetAvailability(ctx, c.ID, true)
	s.Require().NoError(err)
	s.False(ok)
	got, _ = s.repo.Get(ctx, c.ID)
	s.False(got.IsAvailable)

	_, err = s.pool.Exec(ctx, `UPDATE delivery_assignments SET status = 'delivered' WHERE delivery_person_id = $1`, c.ID)
	s.Require().NoError(err)

	ok, err = s.repo.SetAvailability(ctx, c.ID, true)
	s.Require().NoError(err)
	s.True(ok)
	got, _ = s.repo.Get(ctx, c.ID)
	s.True(got.IsAvailable)
}

func (s *CourierRepositorySuite) TestSetAvailabilityRequiresVerifiedActive() {
	ctx := context.Background()
	unverified := s.create(newCourier(false))

	ok, err := s.repo.SetAvailability(ctx, unverified.ID, true)
	s.Require().NoError(err)
	s.False(ok)

	inactive := s.create(newCourier(true))
	_, err = s.repo.Deactivate(ctx, inactive.ID)
	s.Require().NoError(err)
	ok, err = s.repo.SetAvailability(ctx, inactive.ID, true)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.repo.SetAvailability(ctx, inactive.ID, false)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *CourierRepositorySuite) TestVehicleTypeIsConstrained() {
	c := newCourier(true)
	c.VehicleType = domain.VehicleType("hovercraft")
	s.Require().ErrorIs(s.repo.Create(context.Background(), c), apperr.ErrInvalid)
}

func (s *CourierRepositorySuite) TestRecordLocationAppendsTrail() {
	ctx := context.Background()
	c := s.create(newCourier(true))
	at := domain.Coordinate{Lat: 19.076, Lng: 72.8777}
	s.place(c, at)
	s.place(c, domain.Coordinate{Lat: 19.08, Lng: 72.88})

	var trail int
	s.Require().NoError(s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM location_updates WHERE delivery_person_id = $1`, c.ID).Scan(&trail))
	s.Equal(2, trail)

	loc, ok, err := s.repo.LastLocation(ctx, c.ID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(domain.Coordinate{Lat: 19.08, Lng: 72.88}, loc)

	moved, err := s.repo.RecordLocation(ctx, domain.LocationUpdate{CourierID: uuid.New(), Point: at, Timestamp: time.Now()})
	s.Require().NoError(err)
	s.False(moved)
}

func (s *CourierRepositorySuite) TestDispatchableWithin() {
	ctx := context.Background()
	center := domain.Coordinate{Lat: 19.076, Lng: 72.8777}

	near := s.create(newCourier(true))
	s.place(near, domain.Coordinate{Lat: 19.08, Lng: 72.88})

	far := s.create(newCourier(true))
	s.place(far, domain.Coordinate{Lat: 28.61, Lng: 77.2})

	busy := s.create(newCourier(true))
	s.place(busy, domain.Coordinate{Lat: 19.077, Lng: 72.878})
	_, err := s.repo.SetAvailability(ctx, busy.ID, false)
	s.Require().NoError(err)

	s.create(newCourier(true))

	got, err := s.repo.DispatchableWithin(ctx, geo.BoundingBox(center, 10))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(near.ID, got[0].ID)
	s.NotNil(got[0].Location)
}

func (s *CourierRepositorySuite) TestHasActiveAssignmentAndGauges() {
	ctx := context.Background()
	c := s.create(newCourier(true))
	s.create(newCourier(false))

	busy, err := s.repo.HasActiveAssignment(ctx, c.ID)
	s.Require().NoError(err)
	s.False(busy)

	insertAssignment(s.T(), s.pool, c.ID, uuid.New(), domain.StatusPickedUp)
	busy, err = s.repo.HasActiveAssignment(ctx, c.ID)
	s.Require().NoError(err)
	s.True(busy)

	active, available, err := s.repo.Gauges(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), active)
	s.Equal(int64(1), available)
}

func (s *CourierRepositorySuite) TestGet_ContextCanceled_ReturnsError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := s.repo.Get(ctx, uuid.New())
	s.Nil(got)
	s.ErrorIs(err, context.Canceled)
}

func (s *CourierRepositorySuite) TestCreate_ContextCanceled_ReturnsError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.repo.Create(ctx, newCourier(false))
	s.ErrorIs(err, context.Canceled)
}

func TestCourierRepositorySuite(t *testing.T) {
	suite.Run(t, new(CourierRepositorySuite))
}
