package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConflict              = errors.New("conflict")
	ErrInvalidState          = errors.New("invalid state for operation")
	ErrNotRegistered         = errors.New("agent not registered")
	ErrAlreadyRegistered     = errors.New("agent already registered")
	ErrBelowMinimum          = errors.New("deposit below minimum")
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrAmountOverflow        = errors.New("amount overflows balance range")
	ErrAlreadyResolved       = errors.New("dispute already resolved")
	ErrAlreadyResponded      = errors.New("defendant evidence already set")
	ErrNoIdentity            = errors.New("identity registration required")
	ErrIdentityUnavailable   = errors.New("identity gate unavailable")
	ErrIdempotencyRequired   = errors.New("idempotency key required")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")
	ErrInvalidEnvelope       = errors.New("invalid envelope")
)
