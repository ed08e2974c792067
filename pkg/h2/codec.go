// Package h2 implements a bidirectional HTTP/2 frame codec: a passive,
// per-connection engine translating between a wire byte stream and
// semantic HTTP/2 events. It owns frame parsing and generation, header
// block reassembly, HPACK coordination and pseudo-header verification,
// and leaves transport, stream multiplexing and flow-control accounting
// to the connection that drives it.
package h2

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
)

// Direction tells the codec which side of the connection it speaks for.
type Direction int

const (
	// DirectionDownstream is the server side: it receives requests and
	// expects the client connection preface.
	DirectionDownstream Direction = iota
	// DirectionUpstream is the client side: it sends requests and may
	// receive PUSH_PROMISE.
	DirectionUpstream
)

func (d Direction) String() string {
	if d == DirectionDownstream {
		return "downstream"
	}
	return "upstream"
}

// closingState tracks the GOAWAY lifecycle of the connection.
type closingState int

const (
	closingOpen closingState = iota
	closingFirstGoawaySent
	closingClosed
)

// Callbacks is the semantic event surface. The owner installs it once;
// nil fields are no-ops. For a single message the guaranteed prefix is
// OnMessageBegin, OnHeadersComplete, zero or more OnBody, at most one
// OnMessageComplete.
//
// Byte slices handed to OnBody alias the Feed input and are only valid
// for the duration of the callback. Messages are owned by the receiver.
type Callbacks struct {
	OnMessageBegin     func(streamID uint32, msg *Message)
	OnPushMessageBegin func(promisedStreamID, assocStreamID uint32, msg *Message)
	OnHeadersComplete  func(streamID uint32, msg *Message)
	OnBody             func(streamID uint32, data []byte)
	OnMessageComplete  func(streamID uint32, upgrade bool)
	OnSettings         func(settings []Setting)
	OnSettingsAck      func()
	OnPingRequest      func(opaqueData uint64)
	OnPingReply        func(opaqueData uint64)
	OnAbort            func(streamID uint32, code ErrorCode)
	OnGoaway           func(lastStreamID uint32, code ErrorCode)
	OnWindowUpdate     func(streamID uint32, delta uint32)
	// OnError reports both strata: streamID 0 with a *ConnectionError
	// when the connection is dead, or a stream id with a *StreamError
	// (and newTxn true) when one message was malformed.
	OnError func(streamID uint32, err error, newTxn bool)
}

// Codec is one connection's HTTP/2 frame parser and generator. It is not
// safe for concurrent use: Feed and the Generate family must be called
// from the single goroutine that owns the connection.
type Codec struct {
	direction Direction
	callbacks Callbacks
	logger    *log.Logger

	headerCodec *headerCodec

	ingressSettings *Settings
	egressSettings  *Settings

	// ingress latch: parser state suspended between Feed calls
	needPreface          bool
	needHeader           bool
	curHeader            frameHeader
	expectedContinuation uint32 // stream id pinned by an open header block, 0 otherwise
	curBlock             headerBlock
	curBlockPromised     uint32 // promised stream id when the open block came from PUSH_PROMISE
	pendingEndStream     bool   // END_STREAM seen on HEADERS, deferred past END_HEADERS
	failed               bool   // latched by a connection error

	lastIngressStreamID uint32
	nextEgressStreamID  uint32
	receivedFrames      uint64

	closing          closingState
	ingressGoawayAck uint32
	egressGoawayAck  uint32

	headerSplitSize uint32 // 0 means peer MAX_FRAME_SIZE
}

// NewCodec builds a codec for the given direction. logger may be nil.
func NewCodec(direction Direction, logger *log.Logger) *Codec {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Codec{
		direction:        direction,
		logger:           logger,
		headerCodec:      newHeaderCodec(),
		ingressSettings:  newSettings(),
		egressSettings:   newSettings(),
		needHeader:       true,
		ingressGoawayAck: math.MaxUint32,
		egressGoawayAck:  math.MaxUint32,
	}
	switch direction {
	case DirectionDownstream:
		c.needPreface = true
		c.nextEgressStreamID = 2
	case DirectionUpstream:
		c.nextEgressStreamID = 1
	}
	return c
}

// SetCallbacks installs the event surface. Call once, before Feed.
func (c *Codec) SetCallbacks(cb Callbacks) {
	c.callbacks = cb
}

// Direction returns the side the codec speaks for.
func (c *Codec) Direction() Direction {
	return c.direction
}

// IngressSettings is the peer's settings registry.
func (c *Codec) IngressSettings() *Settings {
	return c.ingressSettings
}

// EgressSettings is our settings registry, serialized by GenerateSettings.
func (c *Codec) EgressSettings() *Settings {
	return c.egressSettings
}

// ReceivedFrames returns the number of frames parsed so far.
func (c *Codec) ReceivedFrames() uint64 {
	return c.receivedFrames
}

// SetHeaderSplitSize overrides the maximum header-block fragment carried
// per HEADERS/CONTINUATION frame. Zero restores the default of the peer's
// MAX_FRAME_SIZE.
func (c *Codec) SetHeaderSplitSize(size uint32) {
	if size > maxFramePayloadLength {
		size = maxFramePayloadLength
	}
	c.headerSplitSize = size
}

// CreateStream allocates the next egress stream id: odd starting at 1 for
// upstream codecs, even starting at 2 for downstream.
func (c *Codec) CreateStream() uint32 {
	id := c.nextEgressStreamID
	c.nextEgressStreamID += 2
	return id
}

// maxSendFrameSize is the largest payload the peer advertised accepting.
func (c *Codec) maxSendFrameSize() uint32 {
	return c.ingressSettings.Get(SettingMaxFrameSize, defaultMaxFrameSize)
}

// maxRecvFrameSize is the largest payload we advertised accepting.
func (c *Codec) maxRecvFrameSize() uint32 {
	return c.egressSettings.Get(SettingMaxFrameSize, defaultMaxFrameSize)
}

// Feed consumes as many frames as possible from data, dispatching
// callbacks, and returns the number of bytes consumed. A complete 9-byte
// frame header is consumed and latched even when its payload has not fully
// arrived; a payload is consumed only once complete. A partial frame
// leaves the parser suspended; the next Feed resumes where it stopped,
// yielding the same callbacks as one Feed over the concatenation. After a
// connection error the codec is dead and Feed consumes nothing.
func (c *Codec) Feed(data []byte) int {
	if c.failed {
		return 0
	}
	buf := data
	parsed := 0
	connErr := ErrCodeNoError
	for connErr == ErrCodeNoError {
		if c.needPreface {
			if len(buf) < len(ClientPreface) {
				break
			}
			if string(buf[:len(ClientPreface)]) != ClientPreface {
				connErr = ErrCodeProtocol
			}
			buf = buf[len(ClientPreface):]
			parsed += len(ClientPreface)
			c.needPreface = false
		} else if c.needHeader {
			if len(buf) < frameHeaderLen {
				break
			}
			c.curHeader = parseFrameHeader(buf[:frameHeaderLen])
			buf = buf[frameHeaderLen:]
			parsed += frameHeaderLen
			c.needHeader = false
			c.receivedFrames++
			if c.curHeader.Length > c.maxRecvFrameSize() {
				connErr = ErrCodeFrameSize
			}
		} else {
			if uint32(len(buf)) < c.curHeader.Length {
				break
			}
			payload := buf[:c.curHeader.Length]
			buf = buf[c.curHeader.Length:]
			parsed += len(payload)
			c.needHeader = true
			connErr = c.parseFrame(payload)
		}
	}
	c.checkConnectionError(connErr)
	return parsed
}

// parseFrame dispatches one complete frame payload. It enforces the
// CONTINUATION sequencing rule before dispatch and re-arms the
// expectation after.
func (c *Codec) parseFrame(payload []byte) ErrorCode {
	hdr := c.curHeader
	if c.expectedContinuation != 0 &&
		(hdr.Type != FrameContinuation || c.expectedContinuation != hdr.StreamID) {
		c.logger.Printf("expected CONTINUATION on stream=%d, got %s on stream=%d",
			c.expectedContinuation, hdr.Type, hdr.StreamID)
		return ErrCodeProtocol
	}
	if c.expectedContinuation == 0 && hdr.Type == FrameContinuation {
		c.logger.Printf("unexpected CONTINUATION on stream=%d", hdr.StreamID)
		return ErrCodeProtocol
	}

	framesReceived.WithLabelValues(hdr.Type.String()).Inc()

	var err ErrorCode
	switch hdr.Type {
	case FrameData:
		err = c.parseData(payload)
	case FrameHeaders:
		err = c.parseHeaders(payload)
	case FramePriority:
		err = c.parsePriority(payload)
	case FrameRSTStream:
		err = c.parseRstStream(payload)
	case FrameSettings:
		err = c.parseSettings(payload)
	case FramePushPromise:
		err = c.parsePushPromise(payload)
	case FramePing:
		err = c.parsePing(payload)
	case FrameGoAway:
		err = c.parseGoaway(payload)
	case FrameWindowUpdate:
		err = c.parseWindowUpdate(payload)
	case FrameContinuation:
		err = c.parseContinuation(payload)
	default:
		// Unknown frame types are discarded (RFC 7540 §4.1).
		c.logger.Printf("skipping unknown frame type=0x%x length=%d", uint8(hdr.Type), hdr.Length)
	}

	if frameStartsOrContinuesHeaderBlock(hdr.Type) && hdr.Flags&FlagEndHeaders == 0 {
		c.expectedContinuation = hdr.StreamID
	} else {
		c.expectedContinuation = 0
	}
	return err
}

func frameStartsOrContinuesHeaderBlock(t FrameType) bool {
	return t == FrameHeaders || t == FramePushPromise || t == FrameContinuation
}

// handleEndStream fires OnMessageComplete when the current frame carried
// END_STREAM.
func (c *Codec) handleEndStream() ErrorCode {
	if c.curHeader.Flags&FlagEndStream != 0 {
		c.onMessageComplete(c.curHeader.StreamID, false)
	}
	return ErrCodeNoError
}

func (c *Codec) parseData(payload []byte) ErrorCode {
	if c.curHeader.StreamID == 0 {
		c.logger.Printf("DATA on stream 0")
		return ErrCodeProtocol
	}
	data, ok := stripPadding(payload, c.curHeader.Flags)
	if !ok {
		c.logger.Printf("DATA with bad pad length on stream=%d", c.curHeader.StreamID)
		return ErrCodeProtocol
	}
	c.onBody(c.curHeader.StreamID, data)
	return c.handleEndStream()
}

func (c *Codec) parseHeaders(payload []byte) ErrorCode {
	hdr := c.curHeader
	if hdr.StreamID == 0 {
		c.logger.Printf("HEADERS on stream 0")
		return ErrCodeProtocol
	}

	p := payload
	padLen := 0
	if hdr.Flags&FlagPadded != 0 {
		if len(p) < 1 {
			return ErrCodeProtocol
		}
		padLen = int(p[0])
		p = p[1:]
	}
	if hdr.Flags&FlagPriority != 0 {
		if len(p) < 5 {
			return ErrCodeFrameSize
		}
		_ = parsePriorityPayload(p[:5]) // parsed, not acted on
		p = p[5:]
	}
	if padLen > len(p) {
		c.logger.Printf("HEADERS with bad pad length on stream=%d", hdr.StreamID)
		return ErrCodeProtocol
	}
	p = p[:len(p)-padLen]

	if c.direction == DirectionDownstream {
		if err := c.checkNewStream(hdr.StreamID); err != ErrCodeNoError {
			return err
		}
	} else if hdr.StreamID&0x1 == 0 {
		c.logger.Printf("invalid HEADERS reply stream=%d", hdr.StreamID)
		return ErrCodeProtocol
	}
	if c.closing == closingClosed {
		c.logger.Printf("dropping HEADERS after final GOAWAY, stream=%d", hdr.StreamID)
		return ErrCodeNoError
	}
	if hdr.Flags&FlagEndStream != 0 {
		c.pendingEndStream = true
	}
	return c.parseHeaderBlockFragment(p, 0)
}

func (c *Codec) parseContinuation(payload []byte) ErrorCode {
	return c.parseHeaderBlockFragment(payload, c.curBlockPromised)
}

func (c *Codec) parsePushPromise(payload []byte) ErrorCode {
	hdr := c.curHeader
	if c.direction != DirectionUpstream {
		c.logger.Printf("PUSH_PROMISE on downstream codec")
		return ErrCodeProtocol
	}
	if c.egressSettings.Get(SettingEnablePush, 0) != 1 {
		c.logger.Printf("PUSH_PROMISE with push disabled")
		return ErrCodeProtocol
	}

	p := payload
	padLen := 0
	if hdr.Flags&FlagPadded != 0 {
		if len(p) < 1 {
			return ErrCodeProtocol
		}
		padLen = int(p[0])
		p = p[1:]
	}
	if len(p) < 4 {
		return ErrCodeFrameSize
	}
	promised := binary.BigEndian.Uint32(p[:4]) & 0x7fffffff
	p = p[4:]
	if padLen > len(p) {
		c.logger.Printf("PUSH_PROMISE with bad pad length on stream=%d", hdr.StreamID)
		return ErrCodeProtocol
	}
	p = p[:len(p)-padLen]

	if err := c.checkNewStream(promised); err != ErrCodeNoError {
		return err
	}
	if c.closing == closingClosed {
		c.logger.Printf("dropping PUSH_PROMISE after final GOAWAY, stream=%d", hdr.StreamID)
		return ErrCodeNoError
	}
	return c.parseHeaderBlockFragment(p, promised)
}

// parseHeaderBlockFragment appends one fragment to the accumulator and,
// at END_HEADERS, runs HPACK decode plus verification and delivers the
// message callbacks.
func (c *Codec) parseHeaderBlockFragment(frag []byte, promised uint32) ErrorCode {
	hdr := c.curHeader
	c.curBlock.append(frag)
	if promised != 0 {
		c.curBlockPromised = promised
	}

	var msg *Message
	if hdr.Flags&FlagEndHeaders != 0 {
		headerBlockBytes.Observe(float64(c.curBlock.size))
		chunks := c.curBlock.take()
		isRequest := c.direction == DirectionDownstream || c.curBlockPromised != 0
		c.curBlockPromised = 0
		fields, err := c.headerCodec.decode(chunks)
		if err != nil {
			c.logger.Printf("failed decoding header block for stream=%d: %v", hdr.StreamID, err)
			c.pendingEndStream = false
			return ErrCodeCompression
		}
		m, perr := parseHeaderList(fields, isRequest)
		if perr != nil {
			streamErrors.Inc()
			c.pendingEndStream = false
			c.onError(hdr.StreamID, &StreamError{
				StreamID:   hdr.StreamID,
				StatusCode: 400,
				Reason:     perr.Error(),
			}, true)
			return ErrCodeNoError
		}
		msg = m
	}

	switch hdr.Type {
	case FrameHeaders:
		c.onMessageBegin(hdr.StreamID, msg)
	case FramePushPromise:
		c.onPushMessageBegin(promised, hdr.StreamID, msg)
	}
	if hdr.Flags&FlagEndHeaders != 0 {
		if msg != nil {
			c.onHeadersComplete(hdr.StreamID, msg)
		}
		if c.pendingEndStream {
			c.pendingEndStream = false
			c.onMessageComplete(hdr.StreamID, false)
		}
	}
	return ErrCodeNoError
}

func (c *Codec) parsePriority(payload []byte) ErrorCode {
	if c.curHeader.StreamID == 0 {
		c.logger.Printf("PRIORITY on stream 0")
		return ErrCodeProtocol
	}
	if len(payload) != 5 {
		return ErrCodeFrameSize
	}
	_ = parsePriorityPayload(payload) // parsed and discarded
	return ErrCodeNoError
}

func (c *Codec) parseRstStream(payload []byte) ErrorCode {
	if c.curHeader.StreamID == 0 {
		c.logger.Printf("RST_STREAM on stream 0")
		return ErrCodeProtocol
	}
	if len(payload) != 4 {
		return ErrCodeFrameSize
	}
	code := ErrorCode(binary.BigEndian.Uint32(payload))
	c.onAbort(c.curHeader.StreamID, code)
	return ErrCodeNoError
}

func (c *Codec) parseSettings(payload []byte) ErrorCode {
	hdr := c.curHeader
	if hdr.StreamID != 0 {
		c.logger.Printf("SETTINGS on stream=%d", hdr.StreamID)
		return ErrCodeProtocol
	}
	if hdr.Flags&FlagAck != 0 {
		if len(payload) != 0 {
			c.logger.Printf("SETTINGS ack with payload")
			return ErrCodeFrameSize
		}
		c.onSettingsAck()
		return ErrCodeNoError
	}
	if len(payload)%6 != 0 {
		c.logger.Printf("SETTINGS with length %d not a multiple of 6", len(payload))
		return ErrCodeFrameSize
	}

	var applied []Setting
	for off := 0; off < len(payload); off += 6 {
		id := SettingID(binary.BigEndian.Uint16(payload[off : off+2]))
		value := binary.BigEndian.Uint32(payload[off+2 : off+6])
		switch id {
		case SettingHeaderTableSize:
			c.headerCodec.setEncoderTableSize(value)
		case SettingEnablePush:
			if value != 0 && value != 1 {
				c.logger.Printf("invalid ENABLE_PUSH setting=%d", value)
				return ErrCodeProtocol
			}
		case SettingMaxConcurrentStreams:
		case SettingInitialWindowSize:
			if value > maxWindowSize {
				c.logger.Printf("invalid INITIAL_WINDOW_SIZE setting=%d", value)
				return ErrCodeProtocol
			}
		case SettingMaxFrameSize:
			if value < minMaxFramePayloadLength || value > maxFramePayloadLength {
				c.logger.Printf("invalid MAX_FRAME_SIZE setting=%d", value)
				return ErrCodeProtocol
			}
		case SettingMaxHeaderListSize:
		default:
			// unknown settings are stored and otherwise ignored
		}
		c.ingressSettings.Set(id, value)
		applied = append(applied, Setting{ID: id, Value: value})
	}
	c.onSettings(applied)
	return ErrCodeNoError
}

func (c *Codec) parsePing(payload []byte) ErrorCode {
	if c.curHeader.StreamID != 0 {
		c.logger.Printf("PING on stream=%d", c.curHeader.StreamID)
		return ErrCodeProtocol
	}
	if len(payload) != 8 {
		return ErrCodeFrameSize
	}
	opaque := binary.BigEndian.Uint64(payload)
	if c.curHeader.Flags&FlagAck != 0 {
		c.onPingReply(opaque)
	} else {
		c.onPingRequest(opaque)
	}
	return ErrCodeNoError
}

func (c *Codec) parseGoaway(payload []byte) ErrorCode {
	if c.curHeader.StreamID != 0 {
		c.logger.Printf("GOAWAY on stream=%d", c.curHeader.StreamID)
		return ErrCodeProtocol
	}
	if len(payload) < 8 {
		return ErrCodeFrameSize
	}
	lastGood := binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff
	code := ErrorCode(binary.BigEndian.Uint32(payload[4:8]))
	if debug := payload[8:]; len(debug) > 0 {
		c.logger.Printf("GOAWAY debug data: %q", debug)
	}
	if lastGood < c.ingressGoawayAck {
		c.ingressGoawayAck = lastGood
		c.onGoaway(lastGood, code)
	} else {
		c.logger.Printf("received multiple GOAWAY with increasing last stream=%d", lastGood)
	}
	return ErrCodeNoError
}

func (c *Codec) parseWindowUpdate(payload []byte) ErrorCode {
	if len(payload) != 4 {
		return ErrCodeFrameSize
	}
	delta := binary.BigEndian.Uint32(payload) & 0x7fffffff
	if delta == 0 {
		if c.curHeader.StreamID == 0 {
			c.logger.Printf("WINDOW_UPDATE with 0 delta on connection")
			return ErrCodeProtocol
		}
		// Stream-level zero delta is dropped; the session may choose to
		// reset the stream. TODO(review): RFC 7540 §6.9 calls for
		// RST_STREAM here.
		c.logger.Printf("dropping WINDOW_UPDATE with 0 delta on stream=%d", c.curHeader.StreamID)
		return ErrCodeNoError
	}
	c.onWindowUpdate(c.curHeader.StreamID, delta)
	return ErrCodeNoError
}

// checkNewStream validates a peer-opened stream id: non-zero, not lower
// than the last id checked (a repeated id passes), and of the parity
// opposite to our egress parity.
func (c *Codec) checkNewStream(streamID uint32) ErrorCode {
	if streamID == 0 || streamID < c.lastIngressStreamID {
		c.logger.Printf("invalid new stream=%d", streamID)
		return ErrCodeProtocol
	}
	odd := streamID&0x1 != 0
	push := c.direction == DirectionUpstream
	c.lastIngressStreamID = streamID
	if (odd && push) || (!odd && !push) {
		c.logger.Printf("invalid new stream=%d parity", streamID)
		return ErrCodeProtocol
	}
	return ErrCodeNoError
}

// checkConnectionError latches the codec dead and surfaces a single
// OnError on stream 0 when code is not NO_ERROR.
func (c *Codec) checkConnectionError(code ErrorCode) bool {
	if code == ErrCodeNoError {
		return false
	}
	c.failed = true
	connectionErrors.WithLabelValues(code.String()).Inc()
	c.onError(0, &ConnectionError{Code: code}, false)
	return true
}

// IsReusable reports whether new egress transactions may still be opened
// on the connection.
func (c *Codec) IsReusable() bool {
	return (c.closing == closingOpen ||
		(c.direction == DirectionDownstream && c.IsWaitingToDrain())) &&
		c.ingressGoawayAck == math.MaxUint32
}

// IsWaitingToDrain reports whether a graceful-shutdown GOAWAY probe has
// been sent but not yet finalized.
func (c *Codec) IsWaitingToDrain() bool {
	return c.closing == closingFirstGoawaySent
}

// GenerateConnectionPreface appends the 24-byte client preface. Only
// meaningful on an upstream codec, before any frame.
func (c *Codec) GenerateConnectionPreface(buf *bytes.Buffer) int {
	buf.WriteString(ClientPreface)
	return len(ClientPreface)
}

// perHopHeaders are HTTP/1.x connection-scoped headers with no meaning in
// HTTP/2; GenerateHeader drops them.
var perHopHeaders = map[string]bool{
	"connection":        true,
	"host":              true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
}

// GenerateHeader appends a HEADERS frame (or PUSH_PROMISE when
// assocStream is non-zero) carrying msg's header block, followed by
// CONTINUATION frames when the block exceeds the header split size.
// END_HEADERS is set on the final fragment only. The return value is the
// HPACK-encoded size of the block.
func (c *Codec) GenerateHeader(buf *bytes.Buffer, streamID uint32, msg *Message, assocStream uint32) int {
	fields := make([][2]string, 0, 4+msg.Headers.Len())
	if msg.IsRequest() {
		scheme := schemeHTTP
		if msg.Secure {
			scheme = schemeHTTPS
		}
		fields = append(fields,
			[2]string{pseudoMethod, msg.Method},
			[2]string{pseudoScheme, scheme},
			[2]string{pseudoPath, msg.URL},
		)
		if host := msg.Headers.Get("host"); host != "" {
			fields = append(fields, [2]string{pseudoAuthority, host})
		}
	} else {
		fields = append(fields, [2]string{pseudoStatus, strconv.Itoa(msg.StatusCode)})
	}

	msg.Headers.ForEach(func(name, value string) {
		if name == "" || name[0] == ':' {
			c.logger.Printf("dropping invalid egress header %q", name)
			return
		}
		lower := strings.ToLower(name)
		if perHopHeaders[lower] {
			return
		}
		if lower == "te" && value != "trailers" {
			c.logger.Printf("dropping te header with value %q", value)
			return
		}
		fields = append(fields, [2]string{lower, value})
	})

	block, err := c.headerCodec.encode(fields)
	if err != nil {
		// hpack encoding into a bytes.Buffer cannot fail in practice;
		// surface it as a generator no-op rather than bad wire bytes.
		c.logger.Printf("header encode failed for stream=%d: %v", streamID, err)
		return 0
	}

	split := int(c.headerSplitSize)
	if split == 0 {
		split = int(c.maxSendFrameSize())
	}
	first := true
	for remaining := block; len(remaining) > 0 || first; {
		n := len(remaining)
		if n > split {
			n = split
		}
		chunk := remaining[:n]
		remaining = remaining[n:]
		endHeaders := len(remaining) == 0
		switch {
		case first && assocStream == 0:
			writeHeaders(buf, streamID, chunk, endHeaders)
		case first:
			writePushPromise(buf, assocStream, streamID, chunk, endHeaders)
		default:
			// CONTINUATION follows on the stream that carried the first
			// fragment.
			carrier := streamID
			if assocStream != 0 {
				carrier = assocStream
			}
			writeContinuation(buf, carrier, chunk, endHeaders)
		}
		first = false
	}
	return c.headerCodec.lastEncodedSize()
}

// GenerateBody appends data as DATA frames of at most the peer's
// MAX_FRAME_SIZE. END_STREAM is set on the final frame only when eom.
// Returns the number of wire bytes appended.
func (c *Codec) GenerateBody(buf *bytes.Buffer, streamID uint32, data []byte, eom bool) int {
	maxFrame := int(c.maxSendFrameSize())
	written := 0
	for len(data) > maxFrame {
		written += writeData(buf, streamID, data[:maxFrame], false)
		data = data[maxFrame:]
	}
	return written + writeData(buf, streamID, data, eom)
}

// GenerateEOM appends an empty DATA frame with END_STREAM.
func (c *Codec) GenerateEOM(buf *bytes.Buffer, streamID uint32) int {
	return writeData(buf, streamID, nil, true)
}

// GenerateRstStream appends a RST_STREAM frame.
func (c *Codec) GenerateRstStream(buf *bytes.Buffer, streamID uint32, code ErrorCode) int {
	return writeRstStream(buf, streamID, code)
}

// GenerateGoaway appends a GOAWAY frame and advances the closing state
// machine. A first GOAWAY with lastStream=math.MaxInt32 and NO_ERROR is
// the graceful drain probe; anything else closes. From the closed state
// nothing is emitted and 0 is returned.
func (c *Codec) GenerateGoaway(buf *bytes.Buffer, lastStream uint32, code ErrorCode) int {
	if lastStream > c.egressGoawayAck {
		c.logger.Printf("GOAWAY last stream raised from %d to %d", c.egressGoawayAck, lastStream)
	}
	c.egressGoawayAck = lastStream
	if c.closing == closingClosed {
		c.logger.Printf("not sending GOAWAY for closed session")
		return 0
	}
	switch c.closing {
	case closingOpen:
		if lastStream == maxStreamID && code == ErrCodeNoError {
			c.closing = closingFirstGoawaySent
		} else {
			c.closing = closingClosed
		}
	case closingFirstGoawaySent:
		c.closing = closingClosed
	}
	goawaysGenerated.Inc()
	return writeGoaway(buf, lastStream, code, nil)
}

// GeneratePingRequest appends a PING frame with fresh random opaque data.
func (c *Codec) GeneratePingRequest(buf *bytes.Buffer) int {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		c.logger.Printf("ping opaque data: %v", err)
	}
	return writePing(buf, binary.BigEndian.Uint64(b[:]), false)
}

// GeneratePingReply appends a PING ack echoing opaqueData.
func (c *Codec) GeneratePingReply(buf *bytes.Buffer, opaqueData uint64) int {
	return writePing(buf, opaqueData, true)
}

// GenerateSettings serializes every set entry of the egress registry.
// Advertising HEADER_TABLE_SIZE also resizes what our HPACK decoder will
// permit the peer's encoder to use.
func (c *Codec) GenerateSettings(buf *bytes.Buffer) int {
	settings := c.egressSettings.All()
	for _, s := range settings {
		if s.ID == SettingHeaderTableSize {
			c.headerCodec.setDecoderMaxTableSize(s.Value)
		}
	}
	return writeSettings(buf, settings)
}

// GenerateSettingsAck appends an empty SETTINGS frame with ACK.
func (c *Codec) GenerateSettingsAck(buf *bytes.Buffer) int {
	return writeSettingsAck(buf)
}

// GenerateWindowUpdate appends a WINDOW_UPDATE frame.
func (c *Codec) GenerateWindowUpdate(buf *bytes.Buffer, streamID uint32, delta uint32) int {
	return writeWindowUpdate(buf, streamID, delta)
}

// nil-safe callback dispatch

func (c *Codec) onMessageBegin(streamID uint32, msg *Message) {
	if c.callbacks.OnMessageBegin != nil {
		c.callbacks.OnMessageBegin(streamID, msg)
	}
}

func (c *Codec) onPushMessageBegin(promised, assoc uint32, msg *Message) {
	if c.callbacks.OnPushMessageBegin != nil {
		c.callbacks.OnPushMessageBegin(promised, assoc, msg)
	}
}

func (c *Codec) onHeadersComplete(streamID uint32, msg *Message) {
	if c.callbacks.OnHeadersComplete != nil {
		c.callbacks.OnHeadersComplete(streamID, msg)
	}
}

func (c *Codec) onBody(streamID uint32, data []byte) {
	if c.callbacks.OnBody != nil {
		c.callbacks.OnBody(streamID, data)
	}
}

func (c *Codec) onMessageComplete(streamID uint32, upgrade bool) {
	if c.callbacks.OnMessageComplete != nil {
		c.callbacks.OnMessageComplete(streamID, upgrade)
	}
}

func (c *Codec) onSettings(settings []Setting) {
	if c.callbacks.OnSettings != nil {
		c.callbacks.OnSettings(settings)
	}
}

func (c *Codec) onSettingsAck() {
	if c.callbacks.OnSettingsAck != nil {
		c.callbacks.OnSettingsAck()
	}
}

func (c *Codec) onPingRequest(opaque uint64) {
	if c.callbacks.OnPingRequest != nil {
		c.callbacks.OnPingRequest(opaque)
	}
}

func (c *Codec) onPingReply(opaque uint64) {
	if c.callbacks.OnPingReply != nil {
		c.callbacks.OnPingReply(opaque)
	}
}

func (c *Codec) onAbort(streamID uint32, code ErrorCode) {
	if c.callbacks.OnAbort != nil {
		c.callbacks.OnAbort(streamID, code)
	}
}

func (c *Codec) onGoaway(lastStream uint32, code ErrorCode) {
	if c.callbacks.OnGoaway != nil {
		c.callbacks.OnGoaway(lastStream, code)
	}
}

func (c *Codec) onWindowUpdate(streamID uint32, delta uint32) {
	if c.callbacks.OnWindowUpdate != nil {
		c.callbacks.OnWindowUpdate(streamID, delta)
	}
}

func (c *Codec) onError(streamID uint32, err error, newTxn bool) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(streamID, err, newTxn)
	}
}
