package mcbpx

import "encoding/hex"

// OpCode represents the specific command the packet is performing.
type OpCode uint8

// These constants provide predefined values for all the operations
// which are understood by this library.
const (
	OpCodeGet                    = OpCode(0x00)
	OpCodeSet                    = OpCode(0x01)
	OpCodeAdd                    = OpCode(0x02)
	OpCodeReplace                = OpCode(0x03)
	OpCodeDelete                 = OpCode(0x04)
	OpCodeIncrement              = OpCode(0x05)
	OpCodeDecrement              = OpCode(0x06)
	OpCodeNoop                   = OpCode(0x0a)
	OpCodeAppend                 = OpCode(0x0e)
	OpCodePrepend                = OpCode(0x0f)
	OpCodeTouch                  = OpCode(0x1c)
	OpCodeGAT                    = OpCode(0x1d)
	OpCodeHello                  = OpCode(0x1f)
	OpCodeSASLListMechs          = OpCode(0x20)
	OpCodeSASLAuth               = OpCode(0x21)
	OpCodeSASLStep               = OpCode(0x22)
	OpCodeGetReplica             = OpCode(0x83)
	OpCodeSelectBucket           = OpCode(0x89)
	OpCodeObserve                = OpCode(0x92)
	OpCodeGetLocked              = OpCode(0x94)
	OpCodeUnlockKey              = OpCode(0x95)
	OpCodeGetClusterConfig       = OpCode(0xb5)
	OpCodeCollectionsGetManifest = OpCode(0xba)
	OpCodeCollectionsGetID       = OpCode(0xbb)
	OpCodeSubDocMultiLookup      = OpCode(0xd0)
	OpCodeSubDocMultiMutation    = OpCode(0xd1)
	OpCodeGetErrorMap            = OpCode(0xfe)
)

// ServerOpCode represents the command of a server-initiated request.
type ServerOpCode uint8

const (
	// ServerOpCodeClusterMapChangeNotification is pushed by the server when
	// the cluster topology changes.
	ServerOpCodeClusterMapChangeNotification = ServerOpCode(0x01)

	// ServerOpCodeAuthenticate is used by the server to revalidate credentials.
	ServerOpCodeAuthenticate = ServerOpCode(0x02)

	// ServerOpCodeActiveExternalUsers reports external users active on the node.
	ServerOpCodeActiveExternalUsers = ServerOpCode(0x03)
)

// Name returns the string representation of the OpCode.
func (command OpCode) Name() string {
	switch command {
	case OpCodeGet:
		return "GET"
	case OpCodeSet:
		return "SET"
	case OpCodeAdd:
		return "ADD"
	case OpCodeReplace:
		return "REPLACE"
	case OpCodeDelete:
		return "DELETE"
	case OpCodeIncrement:
		return "INCREMENT"
	case OpCodeDecrement:
		return "DECREMENT"
	case OpCodeNoop:
		return "NOOP"
	case OpCodeAppend:
		return "APPEND"
	case OpCodePrepend:
		return "PREPEND"
	case OpCodeTouch:
		return "TOUCH"
	case OpCodeGAT:
		return "GAT"
	case OpCodeHello:
		return "HELLO"
	case OpCodeSASLListMechs:
		return "SASLLISTMECHS"
	case OpCodeSASLAuth:
		return "SASLAUTH"
	case OpCodeSASLStep:
		return "SASLSTEP"
	case OpCodeGetReplica:
		return "GETREPLICA"
	case OpCodeSelectBucket:
		return "SELECTBUCKET"
	case OpCodeObserve:
		return "OBSERVE"
	case OpCodeGetLocked:
		return "GET_LOCKED"
	case OpCodeUnlockKey:
		return "UNLOCK"
	case OpCodeGetClusterConfig:
		return "GETCLUSTERCONFIG"
	case OpCodeCollectionsGetManifest:
		return "GETCOLLECTIONMANIFEST"
	case OpCodeCollectionsGetID:
		return "GETCOLLECTIONID"
	case OpCodeSubDocMultiLookup:
		return "SUBDOCMULTILOOKUP"
	case OpCodeSubDocMultiMutation:
		return "SUBDOCMULTIMUTATION"
	case OpCodeGetErrorMap:
		return "GETERRORMAP"
	default:
		return "x" + hex.EncodeToString([]byte{byte(command)})
	}
}

// Name returns the string representation of the ServerOpCode.
func (command ServerOpCode) Name() string {
	switch command {
	case ServerOpCodeClusterMapChangeNotification:
		return "CLUSTERMAPCHANGENOTIFICATION"
	case ServerOpCodeAuthenticate:
		return "AUTHENTICATE"
	case ServerOpCodeActiveExternalUsers:
		return "ACTIVEEXTERNALUSERS"
	default:
		return "x" + hex.EncodeToString([]byte{byte(command)})
	}
}
