package h2

import (
	"bytes"
	"encoding/binary"
)

// frameHeader is the decoded form of the fixed 9-byte frame header.
type frameHeader struct {
	Length   uint32
	Type     FrameType
	Flags    Flags
	StreamID uint32
}

// parseFrameHeader decodes the 9-byte header. The caller guarantees
// len(b) >= frameHeaderLen. The reserved high bit of the stream
// identifier is masked off on read.
func parseFrameHeader(b []byte) frameHeader {
	return frameHeader{
		Length:   uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		Type:     FrameType(b[3]),
		Flags:    Flags(b[4]),
		StreamID: binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff,
	}
}

// appendFrameHeader writes a 9-byte frame header to buf.
func appendFrameHeader(buf *bytes.Buffer, length uint32, t FrameType, flags Flags, streamID uint32) {
	var hdr [frameHeaderLen]byte
	hdr[0] = byte(length >> 16)
	hdr[1] = byte(length >> 8)
	hdr[2] = byte(length)
	hdr[3] = byte(t)
	hdr[4] = byte(flags)
	binary.BigEndian.PutUint32(hdr[5:], streamID&0x7fffffff)
	buf.Write(hdr[:])
}

func writeData(buf *bytes.Buffer, streamID uint32, data []byte, endStream bool) int {
	var flags Flags
	if endStream {
		flags |= FlagEndStream
	}
	appendFrameHeader(buf, uint32(len(data)), FrameData, flags, streamID)
	buf.Write(data)
	return frameHeaderLen + len(data)
}

func writeHeaders(buf *bytes.Buffer, streamID uint32, block []byte, endHeaders bool) int {
	var flags Flags
	if endHeaders {
		flags |= FlagEndHeaders
	}
	appendFrameHeader(buf, uint32(len(block)), FrameHeaders, flags, streamID)
	buf.Write(block)
	return frameHeaderLen + len(block)
}

func writeContinuation(buf *bytes.Buffer, streamID uint32, block []byte, endHeaders bool) int {
	var flags Flags
	if endHeaders {
		flags |= FlagEndHeaders
	}
	appendFrameHeader(buf, uint32(len(block)), FrameContinuation, flags, streamID)
	buf.Write(block)
	return frameHeaderLen + len(block)
}

// writePushPromise emits a PUSH_PROMISE frame on assocStream carrying
// promisedStream and the first header-block fragment.
func writePushPromise(buf *bytes.Buffer, assocStream, promisedStream uint32, block []byte, endHeaders bool) int {
	var flags Flags
	if endHeaders {
		flags |= FlagEndHeaders
	}
	appendFrameHeader(buf, uint32(4+len(block)), FramePushPromise, flags, assocStream)
	var promised [4]byte
	binary.BigEndian.PutUint32(promised[:], promisedStream&0x7fffffff)
	buf.Write(promised[:])
	buf.Write(block)
	return frameHeaderLen + 4 + len(block)
}

func writeRstStream(buf *bytes.Buffer, streamID uint32, code ErrorCode) int {
	appendFrameHeader(buf, 4, FrameRSTStream, 0, streamID)
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], uint32(code))
	buf.Write(payload[:])
	return frameHeaderLen + 4
}

func writeSettings(buf *bytes.Buffer, settings []Setting) int {
	appendFrameHeader(buf, uint32(6*len(settings)), FrameSettings, 0, 0)
	var entry [6]byte
	for _, s := range settings {
		binary.BigEndian.PutUint16(entry[0:2], uint16(s.ID))
		binary.BigEndian.PutUint32(entry[2:6], s.Value)
		buf.Write(entry[:])
	}
	return frameHeaderLen + 6*len(settings)
}

func writeSettingsAck(buf *bytes.Buffer) int {
	appendFrameHeader(buf, 0, FrameSettings, FlagAck, 0)
	return frameHeaderLen
}

func writePing(buf *bytes.Buffer, opaqueData uint64, ack bool) int {
	var flags Flags
	if ack {
		flags |= FlagAck
	}
	appendFrameHeader(buf, 8, FramePing, flags, 0)
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], opaqueData)
	buf.Write(payload[:])
	return frameHeaderLen + 8
}

func writeGoaway(buf *bytes.Buffer, lastStreamID uint32, code ErrorCode, debugData []byte) int {
	appendFrameHeader(buf, uint32(8+len(debugData)), FrameGoAway, 0, 0)
	var payload [8]byte
	binary.BigEndian.PutUint32(payload[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(payload[4:8], uint32(code))
	buf.Write(payload[:])
	buf.Write(debugData)
	return frameHeaderLen + 8 + len(debugData)
}

func writeWindowUpdate(buf *bytes.Buffer, streamID uint32, delta uint32) int {
	appendFrameHeader(buf, 4, FrameWindowUpdate, 0, streamID)
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], delta&0x7fffffff)
	buf.Write(payload[:])
	return frameHeaderLen + 4
}

// priorityUpdate is the 5-byte PRIORITY payload, also carried by HEADERS
// frames with the PRIORITY flag. Parsed and discarded, never acted on.
type priorityUpdate struct {
	StreamDependency uint32
	Exclusive        bool
	Weight           uint8
}

// parsePriorityPayload decodes the 5 priority bytes. The caller
// guarantees len(b) >= 5.
func parsePriorityPayload(b []byte) priorityUpdate {
	dep := binary.BigEndian.Uint32(b[0:4])
	return priorityUpdate{
		StreamDependency: dep & 0x7fffffff,
		Exclusive:        dep&0x80000000 != 0,
		Weight:           b[4],
	}
}

// stripPadding removes the pad-length prefix and trailing padding from a
// padded payload. Returns false when the declared padding exceeds the
// remaining payload.
func stripPadding(payload []byte, flags Flags) ([]byte, bool) {
	if flags&FlagPadded == 0 {
		return payload, true
	}
	if len(payload) < 1 {
		return nil, false
	}
	padLen := int(payload[0])
	payload = payload[1:]
	if padLen > len(payload) {
		return nil, false
	}
	return payload[:len(payload)-padLen], true
}
