package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the audit milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageAuditStart Stage = "AUDIT_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageAuditDone  Stage = "AUDIT_DONE"
	StageAuditError Stage = "AUDIT_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Status classes tracked for fetch completions. StatusOther also covers
// fetches that produced no response at all.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event is one audit milestone.
type Event struct {
	// AuditID is the 16-byte UUID form of the audit identifier.
	AuditID [16]byte
	TS      time.Time
	Stage   Stage
	// Site is the seed host.
	Site string
	URL  string
	// Bytes is the response body size for FETCH_DONE.
	Bytes       int64
	StatusClass StatusClass
	// Dur is the fetch latency, or the whole audit for AUDIT_DONE/AUDIT_ERROR.
	Dur  time.Duration
	Note string
}

// Validate rejects events a sink could not attribute.
func (e Event) Validate() error {
	if e.AuditID == [16]byte{} {
		return errors.New("audit id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageAuditStart, StageAuditDone, StageAuditError:
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// AuditUUID returns AuditID as a uuid.UUID.
func (e Event) AuditUUID() uuid.UUID {
	return uuid.UUID(e.AuditID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events. Zero (no
// response) maps to StatusOther.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
