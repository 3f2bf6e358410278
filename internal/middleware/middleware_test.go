package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/model"
)

type httpObservation struct {
	method, route string
	status        int
}

type recordingSink struct {
	metrics.NopSink
	seen []httpObservation
}

func (s *recordingSink) ObserveHTTP(method, route string, status int, _ time.Duration) {
	s.seen = append(s.seen, httpObservation{method, route, status})
}

func TestRequestLogger_UsesRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	r := mux.NewRouter()
	r.Use(RequestLogger(zerolog.New(&buf), sink))
	r.HandleFunc("/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/abc-123", nil))

	require.Len(t, sink.seen, 1)
	assert.Equal(t, httpObservation{"GET", "/jobs/{id}", http.StatusTeapot}, sink.seen[0])
	assert.Contains(t, buf.String(), `"route":"/jobs/{id}"`)
	assert.Contains(t, buf.String(), `"status":418`)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS("https://moveops.example")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://moveops.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), HeaderUserRole)
}

func TestAuthenticate(t *testing.T) {
	var got model.Actor
	h := Authenticate(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = ActorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "cust-1")
	req.Header.Set(HeaderUserRole, "customer")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Actor{UserID: "cust-1", Role: model.RoleCustomer}, got)

	for _, hdr := range []map[string]string{
		{},
		{HeaderUserID: "cust-1"},
		{HeaderUserID: "cust-1", HeaderUserRole: "ROOT"},
		{HeaderUserRole: "ADMIN"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
	}
}
