// Package data holds the reference datasets the verifier reads: the WHO EML
// names and the EMA register. The ReferenceContainer swaps each dataset
// atomically so lookups never block on a refresh.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser"
	"github.com/giygas/protoscan/metrics"
)

// Dataset labels used in the reference_data_items metric
const (
	DatasetFormulary = "who_eml"
	DatasetRegister  = "ema_register"
)

// Compile-time check to ensure ReferenceContainer implements ReferenceStore
var _ interfaces.ReferenceStore = (*ReferenceContainer)(nil)

// ReferenceContainer holds the reference data with atomic pointers for zero-downtime updates
type ReferenceContainer struct {
	formulary       atomic.Value // map[string]struct{}
	register        atomic.Value // map[string]string
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewReferenceContainer creates a container with empty datasets
func NewReferenceContainer() *ReferenceContainer {
	rc := &ReferenceContainer{}
	rc.formulary.Store(make(map[string]struct{}))
	rc.register.Store(make(map[string]string))
	rc.lastUpdated.Store(time.Time{})
	rc.serverStartTime.Store(time.Time{})
	return rc
}

func (rc *ReferenceContainer) getFormulary() map[string]struct{} {
	if v := rc.formulary.Load(); v != nil {
		if names, ok := v.(map[string]struct{}); ok {
			return names
		}
	}

	logging.Warn("Formulary is empty or invalid")
	return map[string]struct{}{}
}

func (rc *ReferenceContainer) getRegister() map[string]string {
	if v := rc.register.Load(); v != nil {
		if register, ok := v.(map[string]string); ok {
			return register
		}
	}

	logging.Warn("EMA register is empty or invalid")
	return map[string]string{}
}

// IsListed reports whether the INN is on the WHO EML. loaded is false while
// the formulary is empty, in which case listed carries no information.
func (rc *ReferenceContainer) IsListed(inn string) (listed bool, loaded bool) {
	names := rc.getFormulary()
	if len(names) == 0 {
		return false, false
	}
	_, listed = names[medicationparser.Fold(inn)]
	return listed, true
}

// EMAStatus returns the register status of the INN, "" when it is absent
func (rc *ReferenceContainer) EMAStatus(inn string) (status string, loaded bool) {
	register := rc.getRegister()
	if len(register) == 0 {
		return "", false
	}
	return register[medicationparser.Fold(inn)], true
}

func (rc *ReferenceContainer) FormularySize() int {
	return len(rc.getFormulary())
}

func (rc *ReferenceContainer) RegisterSize() int {
	return len(rc.getRegister())
}

// GetLastUpdated returns the timestamp of the last dataset swap
func (rc *ReferenceContainer) GetLastUpdated() time.Time {
	if v := rc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a refresh is currently in progress
func (rc *ReferenceContainer) IsUpdating() bool {
	return rc.updating.Load()
}

// SetServerStartTime sets the server start time
func (rc *ReferenceContainer) SetServerStartTime(startTime time.Time) {
	rc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (rc *ReferenceContainer) GetServerStartTime() time.Time {
	if v := rc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateFormulary atomically replaces the WHO EML names. Keys must already be folded.
func (rc *ReferenceContainer) UpdateFormulary(names map[string]struct{}) {
	if names == nil {
		names = make(map[string]struct{})
	}
	rc.formulary.Store(names)
	rc.lastUpdated.Store(time.Now())
	metrics.ReferenceDataItems.WithLabelValues(DatasetFormulary).Set(float64(len(names)))
}

// UpdateRegister atomically replaces the EMA register. Keys must already be folded.
func (rc *ReferenceContainer) UpdateRegister(register map[string]string) {
	if register == nil {
		register = make(map[string]string)
	}
	rc.register.Store(register)
	rc.lastUpdated.Store(time.Now())
	metrics.ReferenceDataItems.WithLabelValues(DatasetRegister).Set(float64(len(register)))
}

// BeginUpdate marks the start of a refresh
// Returns true if the refresh can proceed, false if another one is in progress
func (rc *ReferenceContainer) BeginUpdate() bool {
	return rc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a refresh
func (rc *ReferenceContainer) EndUpdate() {
	rc.updating.Store(false)
}
