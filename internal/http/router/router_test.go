package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/http/handlers"
	appmw "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/matcher"
)

type fakeCouriers struct{}

func (fakeCouriers) Register(context.Context, domain.NewCourier) (domain.Courier, error) {
	return domain.Courier{ID: uuid.New()}, nil
}

func (fakeCouriers) Get(_ context.Context, id uuid.UUID) (*domain.Courier, error) {
	return &domain.Courier{ID: id}, nil
}

func (fakeCouriers) Verify(context.Context, uuid.UUID) error                     { return nil }
func (fakeCouriers) Deactivate(context.Context, uuid.UUID) error                 { return nil }
func (fakeCouriers) SetAvailability(context.Context, uuid.UUID, bool) error      { return nil }
func (fakeCouriers) UpdateLocation(context.Context, domain.LocationUpdate) error { return nil }

func (fakeCouriers) Nearby(context.Context, domain.Coordinate, float64) ([]matcher.Candidate, error) {
	return nil, nil
}

type fakeAssignments struct{}

func (fakeAssignments) AssignOrder(_ context.Context, req dispatch.Request) (domain.AssignResult, error) {
	return domain.AssignResult{Assignment: domain.Assignment{OrderID: req.OrderID}}, nil
}

func (fakeAssignments) UpdateStatus(_ context.Context, ch domain.StatusChange) (domain.Assignment, error) {
	return domain.Assignment{ID: ch.AssignmentID, Status: ch.Status}, nil
}

func (fakeAssignments) Cancel(_ context.Context, id uuid.UUID, target domain.DeliveryStatus, _ *string) (domain.Assignment, error) {
	return domain.Assignment{ID: id, Status: target}, nil
}

type fakeAdmin struct{}

func (fakeAdmin) Snapshot(context.Context) (domain.Analytics, error) { return domain.Analytics{}, nil }

func (fakeAdmin) Serve(context.Context, realtime.Conn, domain.Identity) error { return nil }
func (fakeAdmin) Count() int                                                  { return 0 }
func (fakeAdmin) CountByRole() map[domain.Role]int                            { return nil }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }
func (denyAll) Forget(string)     {}

func newRouter(t *testing.T, rl *ratelimit.Middleware) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	obs, err := appmw.NewObservability(reg, nil)
	require.NoError(t, err)

	return router.New(router.Deps{
		Base:          handlers.New(nil),
		Couriers:      handlers.NewCourierHandler(nil, fakeCouriers{}, 0),
		Assignments:   handlers.NewAssignmentHandler(nil, fakeAssignments{}, fakeAssignments{}),
		Admin:         handlers.NewAdminHandler(nil, fakeAdmin{}, fakeAdmin{}),
		Realtime:      handlers.NewRealtimeHandler(nil, fakeAdmin{}),
		Observability: obs,
		RateLimit:     rl,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	h := newRouter(t, nil)
	id := uuid.NewString()

	tests := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodGet, "/ping", "", http.StatusOK},
		{http.MethodHead, "/healthcheck", "", http.StatusNoContent},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/couriers", `{"name":"a"}`, http.StatusCreated},
		{http.MethodGet, "/couriers/nearby?lat=1&lng=2", "", http.StatusOK},
		{http.MethodGet, "/couriers/" + id, "", http.StatusOK},
		{http.MethodPost, "/couriers/" + id + "/verify", "", http.StatusOK},
		{http.MethodPost, "/couriers/" + id + "/deactivate", "", http.StatusOK},
		{http.MethodPut, "/couriers/" + id + "/availability", `{"is_available":true}`, http.StatusOK},
		{http.MethodPost, "/couriers/" + id + "/location", `{"latitude":1,"longitude":2}`, http.StatusNoContent},
		{http.MethodPost, "/assignments", `{"order_id":"` + id + `"}`, http.StatusCreated},
		{http.MethodPost, "/assignments/" + id + "/status", `{"status":"accepted"}`, http.StatusOK},
		{http.MethodPost, "/assignments/" + id + "/cancel", "", http.StatusOK},
		{http.MethodGet, "/admin/connections", "", http.StatusOK},
		{http.MethodGet, "/admin/analytics", "", http.StatusOK},
		{http.MethodGet, "/ws", "", http.StatusBadRequest},
		{http.MethodGet, "/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.body != "" {
			req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equalf(t, tt.code, rr.Code, "%s %s: %s", tt.method, tt.path, rr.Body.String())
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	t.Parallel()

	h := newRouter(t, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "route not found")
}

func TestRouter_RateLimitSkipsProbes(t *testing.T) {
	t.Parallel()

	h := newRouter(t, ratelimit.New(nil, nil, denyAll{}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/analytics", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}
