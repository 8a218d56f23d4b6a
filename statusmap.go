package gocbsessx

import "github.com/couchbase/gocbsessx/mcbpx"

// MapStatusCode translates a response status into the engine error
// taxonomy.  The mapping is total: statuses that must never appear on a
// steady-state response (not-my-vbucket, auth-continue, ...) fall
// through to ErrProtocol.
//
// Sub-document multi-path failures map to success so callers can
// inspect the per-path statuses carried in the body.
func MapStatusCode(opcode mcbpx.OpCode, status mcbpx.Status) error {
	switch status {
	case mcbpx.StatusSuccess,
		mcbpx.StatusSubDocMultiPathFailure,
		mcbpx.StatusSubDocSuccessDeleted,
		mcbpx.StatusSubDocMultiPathFailureDeleted:
		return nil

	case mcbpx.StatusKeyNotFound,
		mcbpx.StatusNotStored:
		return ErrDocumentNotFound

	case mcbpx.StatusKeyExists:
		if opcode == mcbpx.OpCodeAdd {
			return ErrDocumentExists
		}
		return ErrCasMismatch

	case mcbpx.StatusTooBig:
		return ErrValueTooLarge

	case mcbpx.StatusInvalidArgs,
		mcbpx.StatusSubDocInvalidCombo:
		return ErrInvalidArgument

	case mcbpx.StatusBadDelta:
		return ErrDeltaInvalid

	case mcbpx.StatusNoBucket:
		return ErrBucketNotFound

	case mcbpx.StatusLocked:
		return ErrDocumentLocked

	case mcbpx.StatusAuthStale,
		mcbpx.StatusAuthError,
		mcbpx.StatusAccessError:
		return ErrAuthenticationFailure

	case mcbpx.StatusNotSupported,
		mcbpx.StatusUnknownCommand:
		return ErrUnsupportedOperation

	case mcbpx.StatusInternalError:
		return ErrInternalServerFailure

	case mcbpx.StatusBusy,
		mcbpx.StatusTmpFail,
		mcbpx.StatusOutOfMemory,
		mcbpx.StatusNotInitialized:
		return ErrTemporaryFailure

	case mcbpx.StatusCollectionUnknown:
		return ErrCollectionNotFound

	case mcbpx.StatusScopeUnknown:
		return ErrScopeNotFound

	case mcbpx.StatusDurabilityInvalidLevel:
		return ErrDurabilityLevelNotAvailable

	case mcbpx.StatusDurabilityImpossible:
		return ErrDurabilityImpossible

	case mcbpx.StatusSyncWriteInProgress:
		return ErrDurableWriteInProgress

	case mcbpx.StatusSyncWriteAmbiguous:
		return ErrDurabilityAmbiguous

	case mcbpx.StatusSyncWriteReCommitInProgress:
		return ErrDurableWriteReCommitInProgress

	case mcbpx.StatusSubDocPathNotFound:
		return ErrPathNotFound

	case mcbpx.StatusSubDocPathMismatch:
		return ErrPathMismatch

	case mcbpx.StatusSubDocPathInvalid:
		return ErrPathInvalid

	case mcbpx.StatusSubDocPathTooBig:
		return ErrPathTooBig

	case mcbpx.StatusSubDocDocTooDeep,
		mcbpx.StatusSubDocValueTooDeep:
		return ErrValueTooDeep

	case mcbpx.StatusSubDocCantInsert:
		return ErrValueInvalid

	case mcbpx.StatusSubDocNotJSON:
		return ErrDocumentNotJSON

	case mcbpx.StatusSubDocBadRange:
		return ErrNumberTooBig

	case mcbpx.StatusSubDocBadDelta:
		return ErrDeltaInvalid

	case mcbpx.StatusSubDocPathExists:
		return ErrPathExists

	case mcbpx.StatusSubDocXattrInvalidFlagCombo,
		mcbpx.StatusSubDocXattrInvalidKeyCombo:
		return ErrXattrInvalidKeyCombo

	case mcbpx.StatusSubDocXattrUnknownMacro:
		return ErrXattrUnknownMacro

	case mcbpx.StatusSubDocXattrUnknownVAttr:
		return ErrXattrUnknownVirtualAttribute

	case mcbpx.StatusSubDocXattrCannotModifyVAttr:
		return ErrXattrCannotModifyVirtualAttribute
	}

	return ErrProtocol
}
