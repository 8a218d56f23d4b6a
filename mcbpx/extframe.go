package mcbpx

import (
	"math"
	"time"
)

// ExtFrameCode identifies a single framing-extras segment.  Request and
// response packets use separate code spaces.
type ExtFrameCode uint16

const (
	ExtFrameCodeResServerDuration   = ExtFrameCode(0x00)
	ExtFrameCodeResReadUnits        = ExtFrameCode(0x01)
	ExtFrameCodeResWriteUnits       = ExtFrameCode(0x02)
	ExtFrameCodeResThrottleDuration = ExtFrameCode(0x03)
)

func DecodeExtFrame(buf []byte) (ExtFrameCode, []byte, int, error) {
	if len(buf) < 1 {
		return 0, nil, 0, protocolError{"framing extras protocol error"}
	}

	bufPos := 0

	frameHeader := buf[bufPos]
	frameCode := ExtFrameCode((frameHeader & 0xF0) >> 4)
	frameLen := uint((frameHeader & 0x0F) >> 0)
	bufPos++

	if frameCode == 15 {
		if len(buf) < bufPos+1 {
			return 0, nil, 0, protocolError{"unexpected eof"}
		}

		frameCodeExt := buf[bufPos]
		frameCode = ExtFrameCode(15 + frameCodeExt)
		bufPos++
	}

	if frameLen == 15 {
		if len(buf) < bufPos+1 {
			return 0, nil, 0, protocolError{"unexpected eof"}
		}

		frameLenExt := buf[bufPos]
		frameLen = uint(15 + frameLenExt)
		bufPos++
	}

	intFrameLen := int(frameLen)
	if len(buf) < bufPos+intFrameLen {
		return 0, nil, 0, protocolError{"unexpected eof"}
	}

	frameBody := buf[bufPos : bufPos+intFrameLen]
	bufPos += intFrameLen

	return frameCode, frameBody, bufPos, nil
}

// IterExtFrames walks every framing-extras segment of a response,
// invoking cb for each.  Unknown codes are passed through so callers
// can discard them transparently.
func IterExtFrames(buf []byte, cb func(ExtFrameCode, []byte)) error {
	for len(buf) > 0 {
		frameCode, frameBody, n, err := DecodeExtFrame(buf)
		if err != nil {
			return err
		}

		cb(frameCode, frameBody)

		buf = buf[n:]
	}

	return nil
}

func DecodeServerDurationExtFrame(buf []byte) (time.Duration, error) {
	if len(buf) != 2 {
		return 0, protocolError{"invalid server duration extframe length"}
	}

	duraEnc := uint64(buf[0])<<8 | uint64(buf[1])
	duraUs := math.Round(math.Pow(float64(duraEnc), 1.74) / 2)
	dura := time.Duration(duraUs) * time.Microsecond

	return dura, nil
}
