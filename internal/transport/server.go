// Package transport runs downstream HTTP/2 codecs on top of gnet event
// loops. Each accepted connection owns one codec; the transport pumps raw
// bytes into Feed, relays the codec's events to a request handler, and
// writes generated response frames back out. Flow-control accounting is
// deliberately not performed here.
package transport

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"sync"

	"github.com/panjf2000/gnet/v2"

	"github.com/FumingPower3925/hyperframe/pkg/h2"
)

// Handler serves one complete request message and returns the response
// message plus body.
type Handler func(ctx context.Context, req *h2.Message, body []byte) (*h2.Message, []byte)

// Server implements gnet.EventHandler for HTTP/2 connections.
type Server struct {
	gnet.BuiltinEventEngine
	handler Handler
	config  Config
	logger  *log.Logger
	engine  gnet.Engine
	ctx     context.Context
	cancel  context.CancelFunc

	activeConns   []gnet.Conn
	activeConnsMu sync.Mutex
}

// NewServer creates an HTTP/2 transport server around handler.
func NewServer(handler Handler, config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler: handler,
		config:  config,
		logger:  config.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start runs the gnet event loop. It blocks until the engine stops.
func (s *Server) Start() error {
	options := []gnet.Option{
		gnet.WithMulticore(s.config.Multicore),
		gnet.WithReusePort(s.config.ReusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
	}
	if s.config.NumEventLoop > 0 {
		options = append(options, gnet.WithNumEventLoop(s.config.NumEventLoop))
	}
	if s.config.IdleTimeout > 0 {
		options = append(options, gnet.WithTCPKeepAlive(s.config.IdleTimeout))
	}
	s.logger.Printf("starting HTTP/2 server on %s", s.config.Addr)
	return gnet.Run(s, "tcp://"+s.config.Addr, options...)
}

// Drain sends the graceful-shutdown GOAWAY probe on every connection,
// letting in-flight streams finish before Stop delivers the final one.
func (s *Server) Drain() {
	s.activeConnsMu.Lock()
	conns := make([]gnet.Conn, len(s.activeConns))
	copy(conns, s.activeConns)
	s.activeConnsMu.Unlock()

	for _, c := range conns {
		if conn, ok := c.Context().(*Connection); ok {
			conn.drain()
		}
	}
}

// Stop sends a final GOAWAY on every connection and stops the engine.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.activeConnsMu.Lock()
	conns := make([]gnet.Conn, len(s.activeConns))
	copy(conns, s.activeConns)
	s.activeConnsMu.Unlock()

	for _, c := range conns {
		if conn, ok := c.Context().(*Connection); ok {
			conn.shutdown()
		}
	}
	return s.engine.Stop(ctx)
}

// OnBoot is called when the server is ready to accept connections.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engine = eng
	s.logger.Printf("HTTP/2 server is listening on %s (multicore: %v)",
		s.config.Addr, s.config.Multicore)
	return gnet.None
}

// OnOpen attaches a fresh codec to the connection and returns our
// SETTINGS frame as the server preface.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	conn := newConnection(c, s)
	c.SetContext(conn)

	s.activeConnsMu.Lock()
	s.activeConns = append(s.activeConns, c)
	s.activeConnsMu.Unlock()

	var preface bytes.Buffer
	conn.codec.GenerateSettings(&preface)
	return preface.Bytes(), gnet.None
}

// OnClose drops the connection from the active set.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	s.activeConnsMu.Lock()
	for i, conn := range s.activeConns {
		if conn == c {
			s.activeConns[i] = s.activeConns[len(s.activeConns)-1]
			s.activeConns = s.activeConns[:len(s.activeConns)-1]
			break
		}
	}
	s.activeConnsMu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Printf("connection closed with error: %v", err)
	}
	return gnet.None
}

// OnTraffic pumps newly arrived bytes through the connection's codec.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*Connection)
	if !ok {
		s.logger.Printf("connection context missing")
		return gnet.Close
	}
	data, err := c.Next(-1)
	if err != nil {
		s.logger.Printf("error reading data: %v", err)
		return gnet.Close
	}
	return conn.handleData(s.ctx, data)
}

// inflight is one request being assembled from a stream's events.
type inflight struct {
	msg            *h2.Message
	body           bytes.Buffer
	acceptEncoding string
	ctx            context.Context
	endSpan        func(statusCode int)
}

// Connection binds one gnet connection to one downstream codec.
type Connection struct {
	conn   gnet.Conn
	codec  *h2.Codec
	server *Server
	logger *log.Logger

	pending    bytes.Buffer // bytes not yet consumed by Feed
	out        bytes.Buffer // frames generated during the current pump
	handlerCtx context.Context
	streams    map[uint32]*inflight
	lastStream uint32
	dead       bool
}

func newConnection(c gnet.Conn, s *Server) *Connection {
	conn := &Connection{
		conn:    c,
		server:  s,
		logger:  s.logger,
		streams: make(map[uint32]*inflight),
	}
	codec := h2.NewCodec(h2.DirectionDownstream, s.logger)
	egress := codec.EgressSettings()
	egress.Set(h2.SettingHeaderTableSize, s.config.HeaderTableSize)
	egress.Set(h2.SettingMaxConcurrentStreams, s.config.MaxConcurrentStreams)
	egress.Set(h2.SettingMaxFrameSize, s.config.MaxFrameSize)
	egress.Set(h2.SettingInitialWindowSize, s.config.InitialWindowSize)
	codec.SetCallbacks(h2.Callbacks{
		OnHeadersComplete: conn.onHeadersComplete,
		OnBody:            conn.onBody,
		OnMessageComplete: conn.onMessageComplete,
		OnSettings:        conn.onSettings,
		OnPingRequest:     conn.onPingRequest,
		OnAbort:           conn.onAbort,
		OnGoaway:          conn.onGoaway,
		OnError:           conn.onError,
	})
	conn.codec = codec
	return conn
}

// handleData feeds buffered wire bytes to the codec and flushes whatever
// the callbacks generated.
func (c *Connection) handleData(ctx context.Context, data []byte) gnet.Action {
	c.handlerCtx = ctx
	c.pending.Write(data)
	consumed := c.codec.Feed(c.pending.Bytes())
	c.pending.Next(consumed)

	if c.out.Len() > 0 {
		frames := make([]byte, c.out.Len())
		copy(frames, c.out.Bytes())
		c.out.Reset()
		if err := c.conn.AsyncWrite(frames, nil); err != nil {
			c.logger.Printf("error writing frames: %v", err)
			return gnet.Close
		}
	}
	if c.dead {
		return gnet.Close
	}
	return gnet.None
}

func (c *Connection) onHeadersComplete(streamID uint32, msg *h2.Message) {
	c.lastStream = streamID
	ctx, span := startRequestSpan(c.handlerCtx, msg, streamID)
	c.streams[streamID] = &inflight{
		msg:            msg,
		acceptEncoding: msg.Headers.Get("accept-encoding"),
		ctx:            ctx,
		endSpan:        func(code int) { endRequestSpan(span, code) },
	}
}

func (c *Connection) onBody(streamID uint32, data []byte) {
	if req, ok := c.streams[streamID]; ok {
		req.body.Write(data)
	}
}

func (c *Connection) onMessageComplete(streamID uint32, _ bool) {
	req, ok := c.streams[streamID]
	if !ok {
		return
	}
	delete(c.streams, streamID)

	resp, body := c.server.handler(req.ctx, req.msg, req.body.Bytes())
	if resp == nil {
		resp = h2.NewResponse(500)
	}
	if encoded, encoding := compressBody(body, req.acceptEncoding, c.server.config.CompressMinSize); encoding != "" {
		body = encoded
		resp.Headers.Set("content-encoding", encoding)
	}
	c.codec.GenerateHeader(&c.out, streamID, resp, 0)
	if len(body) > 0 {
		c.codec.GenerateBody(&c.out, streamID, body, true)
	} else {
		c.codec.GenerateEOM(&c.out, streamID)
	}
	req.endSpan(resp.StatusCode)
}

func (c *Connection) onSettings(_ []h2.Setting) {
	c.codec.GenerateSettingsAck(&c.out)
}

func (c *Connection) onPingRequest(opaqueData uint64) {
	c.codec.GeneratePingReply(&c.out, opaqueData)
}

func (c *Connection) onAbort(streamID uint32, code h2.ErrorCode) {
	if req, ok := c.streams[streamID]; ok {
		delete(c.streams, streamID)
		req.endSpan(499)
	}
	c.logger.Printf("stream %d aborted by peer: %s", streamID, code)
}

func (c *Connection) onGoaway(lastStreamID uint32, code h2.ErrorCode) {
	c.logger.Printf("peer GOAWAY lastStream=%d code=%s", lastStreamID, code)
}

func (c *Connection) onError(streamID uint32, err error, _ bool) {
	if streamID == 0 {
		code := h2.ErrCodeProtocol
		var connErr *h2.ConnectionError
		if errors.As(err, &connErr) {
			code = connErr.Code
		}
		c.codec.GenerateGoaway(&c.out, c.lastStream, code)
		c.dead = true
		return
	}
	// Malformed request: answer 400 and keep the connection alive.
	var streamErr *h2.StreamError
	status := 400
	if errors.As(err, &streamErr) && streamErr.StatusCode != 0 {
		status = streamErr.StatusCode
	}
	resp := h2.NewResponse(status)
	c.codec.GenerateHeader(&c.out, streamID, resp, 0)
	c.codec.GenerateEOM(&c.out, streamID)
}

// shutdown performs the immediate (non-probing) GOAWAY and closes.
func (c *Connection) shutdown() {
	var buf bytes.Buffer
	if c.codec.GenerateGoaway(&buf, c.lastStream, h2.ErrCodeNoError) > 0 {
		_ = c.conn.AsyncWrite(buf.Bytes(), func(conn gnet.Conn, _ error) error {
			return conn.Close()
		})
		return
	}
	_ = c.conn.Close()
}

// drain announces a graceful shutdown probe, allowing in-flight streams
// to finish before the final GOAWAY.
func (c *Connection) drain() {
	var buf bytes.Buffer
	if c.codec.GenerateGoaway(&buf, math.MaxInt32, h2.ErrCodeNoError) > 0 {
		_ = c.conn.AsyncWrite(buf.Bytes(), nil)
	}
}
