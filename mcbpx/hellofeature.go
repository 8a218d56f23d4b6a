package mcbpx

import "strconv"

// HelloFeature represents a feature code included in a memcached
// HELLO operation.
type HelloFeature uint16

const (
	// HelloFeatureDatatype indicates support for Datatype fields.
	HelloFeatureDatatype = HelloFeature(0x01)

	// HelloFeatureTLS indicates support for TLS.
	HelloFeatureTLS = HelloFeature(0x02)

	// HelloFeatureTCPNoDelay indicates support for TCP no-delay.
	HelloFeatureTCPNoDelay = HelloFeature(0x03)

	// HelloFeatureSeqNo indicates support for mutation tokens.
	HelloFeatureSeqNo = HelloFeature(0x04)

	// HelloFeatureTCPDelay indicates support for TCP delay.
	HelloFeatureTCPDelay = HelloFeature(0x05)

	// HelloFeatureXattr indicates support for document xattrs.
	HelloFeatureXattr = HelloFeature(0x06)

	// HelloFeatureXerror indicates support for extended errors.
	HelloFeatureXerror = HelloFeature(0x07)

	// HelloFeatureSelectBucket indicates support for the SelectBucket operation.
	HelloFeatureSelectBucket = HelloFeature(0x08)

	// Feature 0x09 is reserved and cannot be used.

	// HelloFeatureSnappy indicates support for snappy compressed documents.
	HelloFeatureSnappy = HelloFeature(0x0a)

	// HelloFeatureJSON indicates support for JSON datatype data.
	HelloFeatureJSON = HelloFeature(0x0b)

	// HelloFeatureDuplex indicates support for duplex communications.
	HelloFeatureDuplex = HelloFeature(0x0c)

	// HelloFeatureClusterMapNotif indicates support for cluster-map update notifications.
	HelloFeatureClusterMapNotif = HelloFeature(0x0d)

	// HelloFeatureUnorderedExec indicates support for unordered execution of operations.
	HelloFeatureUnorderedExec = HelloFeature(0x0e)

	// HelloFeatureDurations indicates support for server durations.
	HelloFeatureDurations = HelloFeature(0x0f)

	// HelloFeatureAltRequests indicates support for requests with flexible frame extras.
	HelloFeatureAltRequests = HelloFeature(0x10)

	// HelloFeatureSyncReplication indicates support for synchronous durability requirements.
	HelloFeatureSyncReplication = HelloFeature(0x11)

	// HelloFeatureCollections indicates support for collections.
	HelloFeatureCollections = HelloFeature(0x12)

	// HelloFeaturePreserveExpiry indicates support for preserve TTL.
	HelloFeaturePreserveExpiry = HelloFeature(0x14)

	// HelloFeatureCreateAsDeleted indicates support for the create as deleted feature.
	HelloFeatureCreateAsDeleted = HelloFeature(0x17)

	// HelloFeatureReplaceBodyWithXattr indicates support for the replace body with xattr feature.
	HelloFeatureReplaceBodyWithXattr = HelloFeature(0x19)
)

// String returns the textual representation of this HelloFeature.
func (f HelloFeature) String() string {
	switch f {
	case HelloFeatureDatatype:
		return "Datatype"
	case HelloFeatureTLS:
		return "TLS"
	case HelloFeatureTCPNoDelay:
		return "TCPNoDelay"
	case HelloFeatureSeqNo:
		return "SeqNo"
	case HelloFeatureTCPDelay:
		return "TCPDelay"
	case HelloFeatureXattr:
		return "Xattr"
	case HelloFeatureXerror:
		return "Xerror"
	case HelloFeatureSelectBucket:
		return "SelectBucket"
	case HelloFeatureSnappy:
		return "Snappy"
	case HelloFeatureJSON:
		return "JSON"
	case HelloFeatureDuplex:
		return "Duplex"
	case HelloFeatureClusterMapNotif:
		return "ClusterMapNotif"
	case HelloFeatureUnorderedExec:
		return "UnorderedExec"
	case HelloFeatureDurations:
		return "Durations"
	case HelloFeatureAltRequests:
		return "AltRequests"
	case HelloFeatureSyncReplication:
		return "SyncReplication"
	case HelloFeatureCollections:
		return "Collections"
	case HelloFeaturePreserveExpiry:
		return "PreserveExpiry"
	case HelloFeatureCreateAsDeleted:
		return "CreateAsDeleted"
	case HelloFeatureReplaceBodyWithXattr:
		return "ReplaceBodyWithXattr"
	}
	return "x" + strconv.FormatUint(uint64(f), 16)
}
