package mcbpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestPacket() *Packet {
	return &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeSet,
		Datatype:  uint8(DatatypeFlagJSON),
		VbucketID: 512,
		Opaque:    0xDEADBEEF,
		Cas:       0x0102030405060708,
		Extras:    []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		Key:       []byte("test-key"),
		Value:     []byte(`{"x":1}`),
	}
}

func TestParserRoundTrip(t *testing.T) {
	pak := makeTestPacket()

	buf, err := EncodePacket(pak)
	require.NoError(t, err)

	var parser Parser
	parser.Feed(buf)

	var out Packet
	res, err := parser.Next(&out)
	require.NoError(t, err)
	require.Equal(t, ParseResultOK, res)

	assert.Equal(t, pak.Magic, out.Magic)
	assert.Equal(t, pak.OpCode, out.OpCode)
	assert.Equal(t, pak.Datatype, out.Datatype)
	assert.Equal(t, pak.VbucketID, out.VbucketID)
	assert.Equal(t, pak.Opaque, out.Opaque)
	assert.Equal(t, pak.Cas, out.Cas)
	assert.Equal(t, pak.Extras, out.Extras)
	assert.Equal(t, pak.Key, out.Key)
	assert.Equal(t, pak.Value, out.Value)

	res, err = parser.Next(&out)
	require.NoError(t, err)
	assert.Equal(t, ParseResultNeedData, res)
}

func TestParserRoundTripExtMagic(t *testing.T) {
	pak := &Packet{
		Magic:         MagicResExt,
		OpCode:        OpCodeGet,
		Status:        StatusSuccess,
		Opaque:        7,
		FramingExtras: []byte{0x02, 0x01, 0xF4},
		Value:         []byte("value"),
	}

	buf, err := EncodePacket(pak)
	require.NoError(t, err)

	var parser Parser
	parser.Feed(buf)

	var out Packet
	res, err := parser.Next(&out)
	require.NoError(t, err)
	require.Equal(t, ParseResultOK, res)

	assert.Equal(t, pak.FramingExtras, out.FramingExtras)
	assert.Equal(t, pak.Value, out.Value)
}

// Feeding a frame split arbitrarily must produce the same packets as
// feeding it whole.
func TestParserSplitFeeds(t *testing.T) {
	pak := makeTestPacket()

	buf, err := EncodePacket(pak)
	require.NoError(t, err)

	for splitAt := 1; splitAt < len(buf); splitAt++ {
		var parser Parser
		var out Packet

		parser.Feed(buf[:splitAt])
		res, err := parser.Next(&out)
		require.NoError(t, err)
		require.Equal(t, ParseResultNeedData, res)

		parser.Feed(buf[splitAt:])
		res, err = parser.Next(&out)
		require.NoError(t, err)
		require.Equal(t, ParseResultOK, res, "split at %d", splitAt)
		assert.Equal(t, pak.Key, out.Key)
		assert.Equal(t, pak.Value, out.Value)
	}
}

func TestParserOneAndAHalfFrames(t *testing.T) {
	pak := makeTestPacket()

	buf, err := EncodePacket(pak)
	require.NoError(t, err)
	buf, err = AppendPacket(buf, pak)
	require.NoError(t, err)

	var parser Parser
	parser.Feed(buf[:len(buf)-10])

	var out Packet
	res, err := parser.Next(&out)
	require.NoError(t, err)
	assert.Equal(t, ParseResultOK, res)

	res, err = parser.Next(&out)
	require.NoError(t, err)
	assert.Equal(t, ParseResultNeedData, res)

	parser.Feed(buf[len(buf)-10:])
	res, err = parser.Next(&out)
	require.NoError(t, err)
	assert.Equal(t, ParseResultOK, res)
}

func TestParserInvalidMagic(t *testing.T) {
	buf := make([]byte, 24)
	buf[0] = 0x55

	var parser Parser
	parser.Feed(buf)

	var out Packet
	res, err := parser.Next(&out)
	assert.Equal(t, ParseResultFailure, res)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParserInconsistentLengths(t *testing.T) {
	pak := makeTestPacket()
	buf, err := EncodePacket(pak)
	require.NoError(t, err)

	// declare a key longer than the whole payload
	buf[2] = 0xFF
	buf[3] = 0xFF

	var parser Parser
	parser.Feed(buf)

	var out Packet
	res, err := parser.Next(&out)
	assert.Equal(t, ParseResultFailure, res)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParserPayloadSurvivesFeed(t *testing.T) {
	pak := makeTestPacket()
	buf, err := EncodePacket(pak)
	require.NoError(t, err)

	var parser Parser
	parser.Feed(buf)

	var out Packet
	res, err := parser.Next(&out)
	require.NoError(t, err)
	require.Equal(t, ParseResultOK, res)

	// reusing the parser buffer must not corrupt the produced packet
	parser.Feed(make([]byte, 64))
	assert.Equal(t, pak.Key, out.Key)
	assert.Equal(t, pak.Value, out.Value)
}
