package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")

	// Ledger errors
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient wallet balance")
	ErrNotEligible           = errors.New("payment is not eligible for refund")
	ErrAlreadyRequested      = errors.New("refund already requested for this payment")
	ErrInvalidPaymentType    = errors.New("invalid payment type")
	ErrGatewayFailure        = errors.New("payment could not be processed by the gateway")
	ErrDuplicateNotification = errors.New("duplicate gateway notification")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
