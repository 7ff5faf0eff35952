// Package httpapi exposes the access core's caller-facing contract: the
// middleware constructors the routing layer composes around its CRUD
// handlers, plus the handful of endpoints the core owns itself (PIN
// verification, branch sessions, health, metrics).
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"gymgate.dev/internal/audit"
	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/obs"
	"gymgate.dev/internal/pin"
)

// Deps are the core services the API composes. All of them are constructed
// once in cmd/api and injected.
type Deps struct {
	DB         *sql.DB
	Resolver   *auth.Resolver
	Registry   *auth.Registry
	PINs       *pin.Authenticator
	Recorder   *audit.Recorder
	Sessions   auth.SessionStore
	Staff      auth.StaffStore
	SessionTTL time.Duration
	Version    string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	resolver   *auth.Resolver
	registry   *auth.Registry
	pins       *pin.Authenticator
	recorder   *audit.Recorder
	sessions   auth.SessionStore
	staff      auth.StaffStore
	sessionTTL time.Duration
	readyProbe ReadyProbe
	version    string
}

// ReadyProbe checks the dependencies the service cannot run without.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

const defaultSessionTTL = 12 * time.Hour

// New wires routes. The routing layer for CRUD entities lives outside this
// core and mounts our middleware around its own handlers.
func New(deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		resolver:   deps.Resolver,
		registry:   deps.Registry,
		pins:       deps.PINs,
		recorder:   deps.Recorder,
		sessions:   deps.Sessions,
		staff:      deps.Staff,
		sessionTTL: deps.SessionTTL,
		readyProbe: ReadyProbe{DB: deps.DB},
		version:    deps.Version,
	}
	if a.sessionTTL <= 0 {
		a.sessionTTL = defaultSessionTTL
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// PIN step-up and branch sessions. Both are credential surfaces, so
	// they sit behind the per-IP rate limit in addition to the attempt
	// window.
	a.mux.Handle("/v1/auth/pin/verify", RateLimit(http.HandlerFunc(a.handlePinVerify), 5, 2))
	a.mux.Handle("/v1/auth/sessions", RateLimit(http.HandlerFunc(a.handleSessions), 5, 2))

	// Staff PIN administration: authenticated, permissioned, step-up
	// confirmed and audited.
	a.mux.Handle("PUT /v1/staff/{id}/pin", a.WithAuth(
		a.RequirePermission(auth.PermStaffWrite)(
			a.RequireStepUp(
				a.AuditLog(audit.ActionUpdateStaffPIN, "staff")(
					http.HandlerFunc(a.handleSetStaffPIN))))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the composed http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = LoggingJSON(h)
	h = obs.Instrument(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gymgate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
