package models

import "errors"

// Kind classifies ledger errors so transports can map them without
// matching every sentinel.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindCapacity
	KindConflict
	KindNotFound
	KindBadRequest
)

// LedgerError is a typed failure returned by the ledger services.
type LedgerError struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *LedgerError) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *LedgerError {
	return &LedgerError{Kind: kind, Code: code, Message: message}
}

// Setup validation
var (
	ErrDuplicateTierWeight     = newError(KindValidation, "duplicate_tier_weight", "cannot set duplicate tier weights")
	ErrDuplicateFeeDenom       = newError(KindValidation, "duplicate_fee_denom", "cannot accept the same denom twice for one tier")
	ErrBadTierParams           = newError(KindValidation, "bad_tier_params", "invalid tier parameters")
	ErrInvalidSegmentDates     = newError(KindValidation, "invalid_segment_dates", "segment start must come before segment end")
	ErrOverlappingSegmentDates = newError(KindValidation, "overlapping_segment_dates", "end of the previous segment must come before the start of the next segment")
	ErrBadSegmentDescription   = newError(KindValidation, "bad_segment_description", "segment description is too long")
)

// Authorization and cryptographic failures
var (
	ErrNotAnUsher       = newError(KindUnauthorized, "not_an_usher", "caller is not an usher for this event")
	ErrNotCurator       = newError(KindUnauthorized, "not_curator", "caller is not the event curator")
	ErrSignatureInvalid = newError(KindUnauthorized, "signature_invalid", "check-in signature verification failed")
)

// Capacity
var (
	ErrCapacityExceeded = newError(KindCapacity, "capacity_exceeded", "reservation exceeds the limit for a single wallet")
	ErrTooManyDelegates = newError(KindCapacity, "too_many_delegates", "too many delegated tickets")
)

// State conflicts
var (
	ErrAlreadyCheckedIn          = newError(KindConflict, "already_checked_in", "guest has already checked in")
	ErrTicketAlreadyReserved     = newError(KindConflict, "ticket_already_reserved", "ticket address already holds a reservation")
	ErrDelegateAlreadyRegistered = newError(KindConflict, "delegate_already_registered", "ticket is already registered for another wallet")
	ErrSegmentNotPermitted       = newError(KindConflict, "segment_not_permitted", "tier does not grant access to the requested segment")
)

// Lookups
var (
	ErrEventNotFound      = newError(KindNotFound, "event_not_found", "event not found")
	ErrUnknownTier        = newError(KindNotFound, "unknown_tier", "no tier exists for this weight")
	ErrUnknownGuestTier   = newError(KindNotFound, "unknown_guest_tier", "ticket address has no guest tier")
	ErrNoReservationFound = newError(KindNotFound, "no_reservation_found", "no reserved ticket for this wallet")
	ErrDelegateNotFound   = newError(KindNotFound, "delegate_not_found", "this wallet did not reserve a ticket for that address")
	ErrUnknownSegment     = newError(KindNotFound, "unknown_segment", "segment not found")
)

// Malformed input
var (
	ErrInvalidCheckInPayload = newError(KindBadRequest, "invalid_checkin_payload", "signed check-in payload is malformed")
	ErrInvalidAddress        = newError(KindBadRequest, "invalid_address", "address is empty or too long")
	ErrAmountOverflow        = newError(KindBadRequest, "amount_overflow", "amount overflows")
	ErrEventBusy             = newError(KindConflict, "event_busy", "another operation holds the event lock")
)

// KindOf returns the class of err, KindInternal for anything that is not a
// LedgerError.
func KindOf(err error) Kind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

// CodeOf returns the machine readable code of err.
func CodeOf(err error) string {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return "internal_error"
}
