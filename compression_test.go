package gocbsessx

import (
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/gocbsessx/mcbpx"
)

func TestMaybeDecompressValue(t *testing.T) {
	raw := []byte(`{"rev": 21, "nodesExt": []}`)
	compressed := snappy.Encode(nil, raw)

	value, datatype, err := maybeDecompressValue(uint8(mcbpx.DatatypeFlagCompressed|mcbpx.DatatypeFlagJSON), compressed)
	require.NoError(t, err)
	assert.Equal(t, raw, value)
	assert.Equal(t, uint8(mcbpx.DatatypeFlagJSON), datatype)
}

func TestMaybeDecompressValuePassthrough(t *testing.T) {
	raw := []byte("plain value")

	value, datatype, err := maybeDecompressValue(0, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, value)
	assert.Equal(t, uint8(0), datatype)
}

func TestMaybeDecompressValueCorrupt(t *testing.T) {
	_, _, err := maybeDecompressValue(uint8(mcbpx.DatatypeFlagCompressed), []byte("not snappy"))
	assert.Error(t, err)
}
