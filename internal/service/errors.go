package service

import "errors"

var (
	ErrShopNotFound        = errors.New("shop not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrValidation wraps malformed-input failures: empty service set,
	// unknown services, spans outside the operating window.
	ErrValidation = errors.New("validation failed")

	// ErrSlotUnavailable means the authoritative in-lock recheck found the
	// span taken. Retrying the same slot will not help.
	ErrSlotUnavailable = errors.New("slot is no longer available")

	// ErrLockTimeout means the booking lock could not be acquired within
	// the bounded wait. The slot may still be free; callers may retry.
	ErrLockTimeout = errors.New("could not acquire booking lock in time")

	// ErrInvalidTransition means the reservation's current status is not in
	// the allowed "from" set for the requested target.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCancelAfterStart rejects customer cancellations at or after the
	// reservation's start time.
	ErrCancelAfterStart = errors.New("customer cancellation not allowed after start time")

	ErrRefundAlreadyProcessed = errors.New("refund already processed for this reservation")
	ErrRefundExceedsPaid      = errors.New("refund amount exceeds paid amount")

	// ErrExternalService wraps payment gateway failures. The enclosing
	// transaction is rolled back and the caller may retry.
	ErrExternalService = errors.New("external service failure")
)
