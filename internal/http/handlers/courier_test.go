package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/service/matcher"
	testlog "courier-dispatch/internal/testutil"
)

type stubCourierUsecase struct {
	registerFn        func(ctx context.Context, n domain.NewCourier) (domain.Courier, error)
	getFn             func(ctx context.Context, id uuid.UUID) (*domain.Courier, error)
	verifyFn          func(ctx context.Context, id uuid.UUID) error
	deactivateFn      func(ctx context.Context, id uuid.UUID) error
	setAvailabilityFn func(ctx context.Context, id uuid.UUID, available bool) error
	updateLocationFn  func(ctx context.Context, u domain.LocationUpdate) error
	nearbyFn          func(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error)
}

func (s *stubCourierUsecase) Register(ctx context.Context, n domain.NewCourier) (domain.Courier, error) {
	return s.registerFn(ctx, n)
}

func (s *stubCourierUsecase) Get(ctx context.Context, id uuid.UUID) (*domain.Courier, error) {
	return s.getFn(ctx, id)
}

func (s *stubCourierUsecase) Verify(ctx context.Context, id uuid.UUID) error {
	return s.verifyFn(ctx, id)
}

func (s *stubCourierUsecase) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.deactivateFn(ctx, id)
}

func (s *stubCourierUsecase) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return s.setAvailabilityFn(ctx, id, available)
}

func (s *stubCourierUsecase) UpdateLocation(ctx context.Context, u domain.LocationUpdate) error {
	return s.updateLocationFn(ctx, u)
}

func (s *stubCourierUsecase) Nearby(ctx context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error) {
	return s.nearbyFn(ctx, at, radiusKm)
}

func TestCourierHandler_Register_Created(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	uc := &stubCourierUsecase{
		registerFn: func(_ context.Context, n domain.NewCourier) (domain.Courier, error) {
			require.Equal(t, "Ravi", n.Name)
			require.Equal(t, domain.VehicleScooter, n.VehicleType)
			return domain.Courier{
				ID: id, Name: n.Name, Phone: n.Phone, VehicleType: n.VehicleType,
				IsActive: true, Stats: domain.CourierStats{Rating: 5},
			}, nil
		},
	}
	h := handlers.NewCourierHandler(nil, uc, 0)

	rr := httptest.NewRecorder()
	h.Register(rr, newRequest(http.MethodPost, "/couriers",
		`{"name":"Ravi","phone":"+919876543210","vehicle_type":"scooter","vehicle_number":"MH01"}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "/couriers/"+id.String(), rr.Header().Get("Location"))
	body := decodeBody[map[string]any](t, rr)
	require.Equal(t, id.String(), body["id"])
	require.Equal(t, true, body["is_active"])
	require.Equal(t, 5.0, body["rating"])
	require.Nil(t, body["current_latitude"])
}

func TestCourierHandler_Register_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "bad json", body: `{`, code: http.StatusBadRequest},
		{name: "unknown field", body: `{"nickname":"x"}`, code: http.StatusBadRequest},
		{name: "invalid", body: `{"name":""}`, err: apperr.ErrInvalid, code: http.StatusBadRequest},
		{name: "duplicate phone", body: `{"name":"a"}`, err: fmt.Errorf("create: %w", apperr.ErrConflict), code: http.StatusConflict},
		{name: "internal", body: `{"name":"a"}`, err: errors.New("db down"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			uc := &stubCourierUsecase{
				registerFn: func(context.Context, domain.NewCourier) (domain.Courier, error) {
					return domain.Courier{}, tt.err
				},
			}
			rr := httptest.NewRecorder()
			handlers.NewCourierHandler(nil, uc, 0).Register(rr, newRequest(http.MethodPost, "/couriers", tt.body))
			require.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestCourierHandler_Get(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	uc := &stubCourierUsecase{
		getFn: func(_ context.Context, got uuid.UUID) (*domain.Courier, error) {
			if got != id {
				return nil, apperr.ErrNotFound
			}
			return &domain.Courier{ID: id, Location: &domain.Coordinate{Lat: 19.07, Lng: 72.87}}, nil
		},
	}
	h := handlers.NewCourierHandler(nil, uc, 0)

	rr := httptest.NewRecorder()
	h.Get(rr, withURLParam(newRequest(http.MethodGet, "/couriers/"+id.String(), ""), "id", id.String()))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[map[string]any](t, rr)
	require.Equal(t, 19.07, body["current_latitude"])
	require.Equal(t, 72.87, body["current_longitude"])

	other := uuid.NewString()
	rr = httptest.NewRecorder()
	h.Get(rr, withURLParam(newRequest(http.MethodGet, "/couriers/"+other, ""), "id", other))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Get(rr, withURLParam(newRequest(http.MethodGet, "/couriers/42", ""), "id", "42"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid id", errorBody(t, rr))
}

func TestCourierHandler_VerifyAndDeactivate(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var verified uuid.UUID
	uc := &stubCourierUsecase{
		verifyFn:     func(_ context.Context, got uuid.UUID) error { verified = got; return nil },
		deactivateFn: func(context.Context, uuid.UUID) error { return apperr.ErrNotFound },
	}
	h := handlers.NewCourierHandler(nil, uc, 0)

	rr := httptest.NewRecorder()
	h.Verify(rr, withURLParam(newRequest(http.MethodPost, "/", ""), "id", id.String()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, id, verified)

	rr = httptest.NewRecorder()
	h.Deactivate(rr, withURLParam(newRequest(http.MethodPost, "/", ""), "id", id.String()))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCourierHandler_SetAvailability(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	uc := &stubCourierUsecase{
		setAvailabilityFn: func(_ context.Context, _ uuid.UUID, available bool) error {
			if available {
				return fmt.Errorf("open assignment: %w", apperr.ErrConflict)
			}
			return nil
		},
	}
	h := handlers.NewCourierHandler(nil, uc, 0)

	rr := httptest.NewRecorder()
	h.SetAvailability(rr, withURLParam(newRequest(http.MethodPut, "/", `{"is_available":false}`), "id", id.String()))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.SetAvailability(rr, withURLParam(newRequest(http.MethodPut, "/", `{"is_available":true}`), "id", id.String()))
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	h.SetAvailability(rr, withURLParam(newRequest(http.MethodPut, "/", `{}`), "id", id.String()))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "is_available is required", errorBody(t, rr))
}

func TestCourierHandler_UpdateLocation(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var got domain.LocationUpdate
	uc := &stubCourierUsecase{
		updateLocationFn: func(_ context.Context, u domain.LocationUpdate) error {
			got = u
			if !u.Point.Valid() {
				return apperr.ErrInvalid
			}
			return nil
		},
	}
	h := handlers.NewCourierHandler(nil, uc, 0)

	rr := httptest.NewRecorder()
	h.UpdateLocation(rr, withURLParam(newRequest(http.MethodPost, "/",
		`{"latitude":19.1,"longitude":72.9,"speed":22.5,"heading":90}`), "id", id.String()))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, id, got.CourierID)
	require.Equal(t, domain.Coordinate{Lat: 19.1, Lng: 72.9}, got.Point)
	require.Equal(t, 22.5, *got.Speed)
	require.Equal(t, 90.0, *got.Heading)

	rr = httptest.NewRecorder()
	h.UpdateLocation(rr, withURLParam(newRequest(http.MethodPost, "/", `{"latitude":91,"longitude":0}`), "id", id.String()))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.UpdateLocation(rr, withURLParam(newRequest(http.MethodPost, "/", `{"latitude":1}`), "id", id.String()))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "latitude and longitude are required", errorBody(t, rr))
}

func TestCourierHandler_Nearby(t *testing.T) {
	t.Parallel()

	c := domain.Courier{ID: uuid.New(), Name: "Asha"}
	var gotRadius float64
	uc := &stubCourierUsecase{
		nearbyFn: func(_ context.Context, at domain.Coordinate, radiusKm float64) ([]matcher.Candidate, error) {
			gotRadius = radiusKm
			require.Equal(t, domain.Coordinate{Lat: 19, Lng: 72.8}, at)
			return []matcher.Candidate{{Courier: c, DistanceKm: 1.5, ArrivalMinutes: 3}}, nil
		},
	}
	h := handlers.NewCourierHandler(testlog.New().Logger(), uc, 7)

	rr := httptest.NewRecorder()
	h.Nearby(rr, newRequest(http.MethodGet, "/couriers/nearby?lat=19&lng=72.8", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 7.0, gotRadius)

	body := decodeBody[[]map[string]any](t, rr)
	require.Len(t, body, 1)
	require.Equal(t, 1.5, body[0]["distance_km"])
	require.Equal(t, 3.0, body[0]["estimated_arrival_minutes"])

	rr = httptest.NewRecorder()
	h.Nearby(rr, newRequest(http.MethodGet, "/couriers/nearby?lat=19&lng=72.8&radius_km=2.5", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 2.5, gotRadius)

	for _, q := range []string{"lat=19", "lat=x&lng=1", "lat=1&lng=1&radius_km=far"} {
		rr = httptest.NewRecorder()
		h.Nearby(rr, newRequest(http.MethodGet, "/couriers/nearby?"+q, ""))
		require.Equalf(t, http.StatusBadRequest, rr.Code, "query %q", q)
	}
}
