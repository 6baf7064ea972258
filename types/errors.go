package types

import "fmt"

// Error is a coded service error. Codes form a closed set so transports
// can map them to wire statuses without string matching on messages.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// E builds a coded error with a formatted message.
func E(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error codes. Transports map these onto HTTP statuses; see the
// transport package for the table.
const (
	// Malformed or missing input. Always recoverable by the caller.
	CodeValidation = "validation_error"

	// Unknown device.
	CodeDeviceNotFound = "device_not_found"

	// Challenge failure modes. A missing challenge is indistinguishable
	// from an already-consumed one because consumption destroys the record.
	CodeChallengeConsumed = "challenge_consumed"
	CodeChallengeExpired  = "challenge_expired"
	CodeChallengeMismatch = "challenge_mismatch"

	// Payment verification outcomes.
	CodePaymentRequired   = "payment_required"
	CodeProofReused       = "proof_reused"
	CodeTxNotFound        = "transaction_not_found"
	CodeOnChainFailure    = "onchain_failure"
	CodeInsufficientPayment = "insufficient_payment"

	// Credential failure modes.
	CodeUnauthorized      = "unauthorized"
	CodeCredentialExpired = "credential_expired"
	CodeWrongDevice       = "wrong_device_credential"

	// Chain RPC unreachable, timed out, or returned garbage. Surfaced as
	// a verification failure, never as a crash.
	CodeExternalFailure = "external_service_failure"

	CodeUnsupportedMethod = "unsupported_method"
)
