package gocbsessx

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/couchbase/gocbsessx/contrib/cbconfig"
)

func parseConfigHostname(hostname string, sourceHostname string) string {
	if hostname == "" {
		// if no hostname is provided, we want to be using the source one
		return sourceHostname
	}

	if strings.Contains(hostname, ":") {
		// this appears to be an IPv6 address, wrap it for everyone else
		return "[" + hostname + "]"
	}
	return hostname
}

type ConfigParser struct{}

// ParseTerseConfig parses a terse cluster-config document as returned
// by GET-CLUSTER-CONFIG or carried by a cluster-map change
// notification.  sourceHostname replaces the $HOST placeholder and any
// node that omits its hostname.
func (p ConfigParser) ParseTerseConfig(config []byte, sourceHostname string) (*ParsedConfig, error) {
	parsed, err := cbconfig.ParseTerseConfig(config, sourceHostname)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse terse config")
	}

	var out ParsedConfig
	out.RevID = int64(parsed.Rev)
	out.RevEpoch = int64(parsed.RevEpoch)
	out.BucketUUID = parsed.UUID
	out.BucketName = parsed.Name

	out.Nodes = make([]ParsedConfigNode, len(parsed.NodesExt))
	for nodeIdx, node := range parsed.NodesExt {
		var nodeOut ParsedConfigNode
		nodeOut.Hostname = parseConfigHostname(node.Hostname, sourceHostname)
		nodeOut.ThisNode = node.ThisNode
		if node.Services != nil {
			nodeOut.KvPort = int(node.Services.Kv)
			nodeOut.MgmtPort = int(node.Services.Mgmt)
		}

		out.Nodes[nodeIdx] = nodeOut
	}

	return &out, nil
}
