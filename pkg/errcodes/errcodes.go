package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	ConfigurationError  failure.ErrorCode = "ConfigurationError"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"

	// Remote call classification. Drives the retry strategy: transient
	// errors are retried in place, session errors force a relogin first,
	// everything else passes through untouched.
	TransientRemoteError       failure.ErrorCode = "TransientRemoteError"
	SessionExpired             failure.ErrorCode = "SessionExpired"
	ItemNotInInventory         failure.ErrorCode = "ItemNotInInventory"
	ListingPendingConfirmation failure.ErrorCode = "ListingPendingConfirmation"

	// Selection solver outcomes.
	SolverInfeasible failure.ErrorCode = "SolverInfeasible"
	SolverTimeout    failure.ErrorCode = "SolverTimeout"
	SolverUnknown    failure.ErrorCode = "SolverUnknown"
)
