package gocbsessx

import (
	"errors"

	"github.com/couchbase/gocbsessx/mcbpx"
)

// ErrProtocol is surfaced whenever the peer violates the wire protocol:
// malformed frames, unexpected opcodes during bootstrap, or statuses
// that must never appear in steady state.
var ErrProtocol = mcbpx.ErrProtocol

var (
	// ErrRequestCanceled occurs when a request is canceled explicitly or
	// because its session stopped before a response arrived.
	ErrRequestCanceled = errors.New("request canceled")

	// ErrUnambiguousTimeout occurs when the bootstrap deadline expires
	// before the session becomes ready.
	ErrUnambiguousTimeout = errors.New("unambiguous timeout")

	// ErrHandshakeFailure occurs when the HELLO negotiation is rejected.
	ErrHandshakeFailure = errors.New("handshake failure")

	// ErrAuthenticationFailure occurs when any SASL phase fails.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrBucketNotFound occurs when the configured bucket cannot be selected.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrResolveFailed occurs when a candidate hostname does not resolve.
	ErrResolveFailed = errors.New("resolve failed")

	// ErrConnectFailed occurs when a candidate endpoint cannot be dialed.
	ErrConnectFailed = errors.New("connect failed")
)

var (
	ErrInternalServerFailure = errors.New("internal server failure")
	ErrTemporaryFailure      = errors.New("temporary failure")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document exists")
	ErrCasMismatch      = errors.New("cas mismatch")
	ErrValueTooLarge    = errors.New("value too large")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDeltaInvalid     = errors.New("delta invalid")
	ErrDocumentLocked   = errors.New("document locked")

	ErrCollectionNotFound = errors.New("collection not found")
	ErrScopeNotFound      = errors.New("scope not found")

	ErrDurabilityLevelNotAvailable    = errors.New("durability level not available")
	ErrDurabilityImpossible           = errors.New("durability impossible")
	ErrDurabilityAmbiguous            = errors.New("durability ambiguous")
	ErrDurableWriteInProgress         = errors.New("durable write in progress")
	ErrDurableWriteReCommitInProgress = errors.New("durable write re-commit in progress")

	ErrPathNotFound    = errors.New("path not found")
	ErrPathMismatch    = errors.New("path mismatch")
	ErrPathInvalid     = errors.New("path invalid")
	ErrPathTooBig      = errors.New("path too big")
	ErrPathExists      = errors.New("path exists")
	ErrValueTooDeep    = errors.New("value too deep")
	ErrValueInvalid    = errors.New("value invalid")
	ErrDocumentNotJSON = errors.New("document not json")
	ErrNumberTooBig    = errors.New("number too big")

	ErrXattrInvalidKeyCombo              = errors.New("xattr invalid key combo")
	ErrXattrUnknownMacro                 = errors.New("xattr unknown macro")
	ErrXattrUnknownVirtualAttribute      = errors.New("xattr unknown virtual attribute")
	ErrXattrCannotModifyVirtualAttribute = errors.New("xattr cannot modify virtual attribute")
)
