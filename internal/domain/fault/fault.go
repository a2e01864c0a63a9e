// Package fault defines the error taxonomy shared by every layer of the
// generation pipeline. Callers branch on a fault's Kind rather than on
// adapter-specific error values, so classification decisions (retry, fail
// fast, surface to the operator) stay independent of which adapter produced
// the error.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a fault for control-flow decisions.
type Kind string

const (
	// KindWrongPassphrase means the vault record authenticated as intact but
	// could not be opened with the supplied passphrase. Indistinguishable
	// from deliberate ciphertext tampering by construction.
	KindWrongPassphrase Kind = "wrong_passphrase"

	// KindVaultCorrupt means the vault record is structurally damaged:
	// bad magic, unsupported version, truncated fields, or a payload that
	// decrypted cleanly but does not parse.
	KindVaultCorrupt Kind = "vault_corrupt"

	// KindInsecurePermissions means the vault file or its directory is
	// readable by other users. The vault refuses to operate until fixed.
	KindInsecurePermissions Kind = "insecure_permissions"

	// KindQuotaExceeded means the local usage ledger has reached its limit.
	// No remote call is made for a quota-blocked job.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindAuthRejected means the remote refused our credentials. Permanent:
	// retrying with the same credentials cannot succeed.
	KindAuthRejected Kind = "auth_rejected"

	// KindRejected means the remote explicitly refused the request for a
	// reason other than authentication or shape, for example an invalid
	// parameter combination. Permanent.
	KindRejected Kind = "rejected"

	// KindMalformed means a response arrived but failed structural
	// validation: missing fields, an unknown status value, or a payload
	// that cannot satisfy the operation's contract. Permanent.
	KindMalformed Kind = "malformed"

	// KindUnavailable means the remote could not be reached or answered
	// with a server-side failure. Transient.
	KindUnavailable Kind = "unavailable"

	// KindRateLimited means the remote asked us to slow down. Transient;
	// RetryAfter carries the server's requested delay when it sent one.
	KindRateLimited Kind = "rate_limited"

	// KindRetriesExhausted means a transient fault persisted through the
	// full retry budget. The wrapped cause is the final attempt's fault.
	KindRetriesExhausted Kind = "retries_exhausted"

	// KindCircuitOpen means the shared circuit breaker is open and the
	// call was refused without contacting the remote.
	KindCircuitOpen Kind = "circuit_open"

	// KindTimedOut means a job exceeded its overall wait budget before the
	// remote reported a terminal status.
	KindTimedOut Kind = "timed_out"

	// KindCancelled means the caller cancelled the operation.
	KindCancelled Kind = "cancelled"

	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = "unknown"
)

// Fault is an error carrying a Kind plus enough context for both control
// flow and operator-facing messages.
type Fault struct {
	Kind        Kind
	Detail      string
	Remediation string // optional operator hint, shown by the CLI

	// RetryAfter is the server-requested delay. Set only for KindRateLimited.
	RetryAfter time.Duration

	// Delivered reports whether the request may have reached the remote.
	// Faults raised before the request body was written have Delivered
	// false; anything later is presumed delivered. Non-idempotent
	// operations are only retried when Delivered is false.
	Delivered bool

	Err error // wrapped cause, may be nil
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Fault) Unwrap() error { return f.Err }

// New builds a fault with no wrapped cause.
func New(kind Kind, detail string) *Fault {
	return &Fault{Kind: kind, Detail: detail}
}

// Newf builds a fault with a formatted detail and no wrapped cause.
func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds a fault around an underlying error. The cause remains
// reachable through errors.Is/errors.As.
func Wrap(kind Kind, detail string, err error) *Fault {
	return &Fault{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the Kind from err, looking through wrapping.
// Returns KindUnknown for nil and for errors outside the taxonomy.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind at any wrapping depth.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether err is worth retrying: the remote was
// unreachable, failed server-side, or asked us to slow down.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}

// RetryAfterOf returns the server-requested delay from a rate-limit fault,
// or zero when err carries none.
func RetryAfterOf(err error) time.Duration {
	var f *Fault
	if errors.As(err, &f) && f.Kind == KindRateLimited {
		return f.RetryAfter
	}
	return 0
}

// DeliveredOf reports whether the request behind err may have reached the
// remote. Errors outside the taxonomy are presumed delivered.
func DeliveredOf(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Delivered
	}
	return true
}
