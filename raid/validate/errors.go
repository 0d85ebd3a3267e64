package validate

import (
	"fmt"

	"github.com/kmindg/tmp-sub158/lib/faultinject"
	"github.com/pkg/errors"
)

// Kind classifies an inconsistency
type Kind byte

// Kinds of inconsistency
const (
	KindWriteStampInvalid Kind = iota
	KindTimeStampInvalid
	KindStampsExclusive
	KindTimeStampReserved
	KindLBAStampInvalid
	KindChecksumInvalid
	KindPatternMismatch
	KindInvalidatedChecksumValid
	KindSGMismatch
	KindDataLost
)

var kindToString = []string{
	KindWriteStampInvalid:        "write_stamp_invalid",
	KindTimeStampInvalid:         "time_stamp_invalid",
	KindStampsExclusive:          "stamps_exclusive",
	KindTimeStampReserved:        "time_stamp_reserved",
	KindLBAStampInvalid:          "lba_stamp_invalid",
	KindChecksumInvalid:          "checksum_invalid",
	KindPatternMismatch:          "pattern_mismatch",
	KindInvalidatedChecksumValid: "invalidated_checksum_valid",
	KindSGMismatch:               "sg_mismatch",
	KindDataLost:                 "data_lost",
}

// String returns the kind as used in metric labels
func (k Kind) String() string {
	if int(k) >= len(kindToString) {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindToString[k]
}

// InconsistencyError describes one sector which broke an integrity rule.
//
// Hard errors fail the sub-request.  The rest are findings which are
// logged and counted but leave the request to succeed.
type InconsistencyError struct {
	Kind       Kind
	Status     faultinject.Status
	LBA        uint64
	Position   int
	WriteStamp uint16
	TimeStamp  uint32
	LBAStamp   uint16
	Err        error // underlying cause, may be nil
	hard       bool
}

func (e *InconsistencyError) Error() string {
	msg := fmt.Sprintf("lba 0x%x pos %d: %v (ws: 0x%x ts: 0x%x lba stamp: 0x%x)",
		e.LBA, e.Position, e.Kind, e.WriteStamp, e.TimeStamp, e.LBAStamp)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *InconsistencyError) Unwrap() error {
	return e.Err
}

// Hard returns true if the error must fail the sub-request
func (e *InconsistencyError) Hard() bool {
	return e.hard
}

// IsHard returns true if err is or wraps a hard InconsistencyError
func IsHard(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie) && ie.hard
}

// KindOf returns the Kind of the InconsistencyError in err
func KindOf(err error) (Kind, bool) {
	var ie *InconsistencyError
	if !errors.As(err, &ie) {
		return 0, false
	}
	return ie.Kind, true
}

// Outcome is what the I/O layer is told about a sub-request
type Outcome byte

// Outcomes
const (
	Success Outcome = iota
	RecoverableLogged
	HardFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RecoverableLogged:
		return "recoverable inconsistency logged"
	case HardFailure:
		return "hard failure"
	}
	return "unknown outcome"
}

// Classify turns the result of a validation pass into an Outcome.
//
// Any error fails the request, not just hard inconsistencies, since
// the caller can't trust a buffer it could not walk.
func Classify(err error, findings int) Outcome {
	switch {
	case err != nil:
		return HardFailure
	case findings > 0:
		return RecoverableLogged
	}
	return Success
}

// Result is the outcome of Check
type Result struct {
	Outcome  Outcome
	Findings int   // non-fatal inconsistencies logged
	Err      error // set for HardFailure
}

// Status returns the status code for the I/O layer
func (r Result) Status() faultinject.Status {
	if r.Err == nil {
		return faultinject.StatusOK
	}
	var ie *InconsistencyError
	if errors.As(r.Err, &ie) {
		return ie.Status
	}
	return faultinject.StatusGenericFailure
}
