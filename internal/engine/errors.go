package engine

import (
	"errors"
	"fmt"
)

// RejectCode categorizes command rejections.
type RejectCode string

const (
	// CodeValidation covers unknown cusips, disabled instruments,
	// below-minimum quantities, and capacity exhaustion.
	CodeValidation RejectCode = "VALIDATION"

	// CodeAuthorization covers "no relation to user" failures - the acting
	// user is not a party to the RFQ, or not the party whose turn it is.
	CodeAuthorization RejectCode = "AUTHORIZATION"

	// CodeSequencing covers commands issued from a state that does not
	// permit them, or referencing a stale offer sequence.
	CodeSequencing RejectCode = "SEQUENCING"

	// CodeReference covers lookups of RFQ ids not present in the store.
	CodeReference RejectCode = "REFERENCE"
)

// RejectError is the typed result for a rejected command. It is local to a
// single command: the reply it produces echoes the correlation token and
// carries the sentinel id -1 where no RFQ id applies.
type RejectError struct {
	Code   RejectCode
	Reason string // verbatim wire reason, see rfq reason constants
	RfqID  int64  // rfq.NilRfqID when no id applies
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	if e.RfqID >= 0 {
		return fmt.Sprintf("%s: %s (rfq=%d)", e.Code, e.Reason, e.RfqID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// IsReject reports whether err is a command rejection (as opposed to an
// internal engine fault). Uses errors.As to handle wrapped errors.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

func reject(code RejectCode, reason string, rfqID int64) *RejectError {
	return &RejectError{Code: code, Reason: reason, RfqID: rfqID}
}
