// Package health reports whether the analyzer can serve uploads: the
// analysis store must answer and the reference datasets should be fresh.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
)

const pingTimeout = 2 * time.Second

// Pinger is implemented by analysis stores that hold a connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	refs interfaces.ReferenceStore
	db   Pinger
}

// NewHealthChecker creates a new health checker. db may be nil.
func NewHealthChecker(refs interfaces.ReferenceStore, db Pinger) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		refs: refs,
		db:   db,
	}
}

// HealthCheck returns the health data served on /health. The service is
// unhealthy only when the analysis store is down; missing or stale reference
// data degrades verification but uploads still work.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	formulary := h.refs.FormularySize()
	register := h.refs.RegisterSize()
	lastUpdate := h.refs.GetLastUpdated()
	isUpdating := h.refs.IsUpdating()

	dbStatus := "ok"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err := h.db.Ping(ctx)
		cancel()
		if err != nil {
			logging.Warn("Database ping failed", "error", err)
			dbStatus = "unreachable"
		}
	}

	var dataAge time.Duration
	if !lastUpdate.IsZero() {
		dataAge = time.Since(lastUpdate)
	}

	switch {
	case dbStatus != "ok":
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case formulary == 0 || register == 0:
		status = "degraded"
		httpStatus = http.StatusOK

	case dataAge > 48*time.Hour:
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"database":        dbStatus,
		"formulary_items": formulary,
		"register_items":  register,
		"data_age_hours":  math.Round(dataAge.Hours()*10) / 10,
		"is_updating":     isUpdating,
		"next_update":     h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
	}
	if start := h.refs.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = math.Round(time.Since(start).Seconds())
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled refresh (06:00 or 18:00 local time)
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return nextUpdateAfter(time.Now())
}

func nextUpdateAfter(now time.Time) time.Time {
	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	sixPM := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, now.Location())

	if now.Before(sixAM) {
		return sixAM
	}

	if now.Before(sixPM) {
		return sixPM
	}

	return sixAM.AddDate(0, 0, 1)
}
