package mcbpx

import (
	"encoding/binary"
	"math"
)

// AppendPacket serializes a packet onto buf and returns the extended
// buffer.  Opaques are chosen by the session, not here.
func AppendPacket(buf []byte, pak *Packet) ([]byte, error) {
	extFramesLen := len(pak.FramingExtras)
	extrasLen := len(pak.Extras)
	keyLen := len(pak.Key)
	valueLen := len(pak.Value)
	payloadLen := extFramesLen + extrasLen + keyLen + valueLen

	// we intentionally guarentee that headerBuf never escapes this function
	// so this will end up not needing to actually allocate (will go on stack)
	headerBuf := make([]byte, headerLen)

	headerBuf[0] = uint8(pak.Magic)
	headerBuf[1] = uint8(pak.OpCode)

	if pak.Magic.IsExtended() {
		if extFramesLen > math.MaxUint8 {
			return nil, protocolError{"framing extras too long to encode"}
		}

		if keyLen > math.MaxUint8 {
			return nil, protocolError{"key too long to encode"}
		}

		headerBuf[2] = uint8(extFramesLen)
		headerBuf[3] = uint8(keyLen)
	} else if pak.Magic.IsValid() {
		if extFramesLen > 0 {
			return nil, protocolError{"cannot use framing extras with non-ext packets"}
		}

		if keyLen > math.MaxUint16 {
			return nil, protocolError{"key too long to encode"}
		}

		binary.BigEndian.PutUint16(headerBuf[2:], uint16(keyLen))
	} else {
		return nil, protocolError{"invalid magic for key length encoding"}
	}

	if extrasLen > math.MaxUint8 {
		return nil, protocolError{"extras too long to encode"}
	}
	headerBuf[4] = uint8(extrasLen)

	headerBuf[5] = pak.Datatype

	if pak.Magic.IsRequest() {
		if pak.Status != 0 {
			return nil, protocolError{"cannot specify status in a request packet"}
		}

		binary.BigEndian.PutUint16(headerBuf[6:], pak.VbucketID)
	} else {
		if pak.VbucketID != 0 {
			return nil, protocolError{"cannot specify vbucket in a response packet"}
		}

		binary.BigEndian.PutUint16(headerBuf[6:], uint16(pak.Status))
	}

	if uint64(payloadLen) > math.MaxUint32 {
		return nil, protocolError{"packet too long to encode"}
	}
	binary.BigEndian.PutUint32(headerBuf[8:], uint32(payloadLen))

	binary.BigEndian.PutUint32(headerBuf[12:], pak.Opaque)

	binary.BigEndian.PutUint64(headerBuf[16:], pak.Cas)

	buf = append(buf, headerBuf...)
	buf = append(buf, pak.FramingExtras...)
	buf = append(buf, pak.Extras...)
	buf = append(buf, pak.Key...)
	buf = append(buf, pak.Value...)

	return buf, nil
}

// EncodePacket serializes a packet into a newly allocated buffer.
func EncodePacket(pak *Packet) ([]byte, error) {
	return AppendPacket(nil, pak)
}
