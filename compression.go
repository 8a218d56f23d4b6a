package gocbsessx

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/couchbase/gocbsessx/mcbpx"
)

// maybeDecompressValue transparently decompresses a response value that
// carries the compressed datatype flag.
func maybeDecompressValue(datatype uint8, value []byte) ([]byte, uint8, error) {
	if (mcbpx.DatatypeFlag(datatype) & mcbpx.DatatypeFlagCompressed) == 0 {
		return value, datatype, nil
	}

	newValue, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to decompress value")
	}

	return newValue, datatype &^ uint8(mcbpx.DatatypeFlagCompressed), nil
}
