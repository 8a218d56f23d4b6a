package gocbsessx

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/couchbase/gocbsessx/mcbpx"
)

var enablePacketLogging bool = os.Getenv("GCBSX_PACKET_LOGGING") != ""

const (
	defaultBootstrapTimeout = 10 * time.Second
	defaultConnectTimeout   = 7 * time.Second

	// exhaustedListBackoff is how long the session waits after walking
	// past the last bootstrap candidate before restarting the cursor.
	exhaustedListBackoff = 500 * time.Millisecond

	readBufferSize = 16384
)

// DialFunc establishes the transport connection to a candidate address.
// The default resolves the hostname and dials TCP with the session's
// connect timeout.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

type messageHandler interface {
	Handle(pak *mcbpx.Packet)
	Stop()
}

type SessionOptions struct {
	// ClientID identifies the owning client across all of its sessions.
	ClientID string

	// ConnectionString seeds the candidate list (and possibly the bucket
	// name) from a couchbase:// scheme string.  Ignored when Endpoints
	// is specified.
	ConnectionString string

	// Endpoints lists bootstrap candidates as host:port strings.
	Endpoints []string

	Username   string
	Password   string
	BucketName string

	// RequestedFeatures overrides the default HELLO feature set.
	RequestedFeatures []mcbpx.HelloFeature

	// EnabledSaslMechs overrides the default mechanism preference order.
	EnabledSaslMechs []AuthMechanism

	BootstrapTimeout time.Duration
	ConnectTimeout   time.Duration

	Logger   *zap.Logger
	DialFunc DialFunc
}

// Session owns one connection to one node: it negotiates features and
// authenticates, selects a bucket, keeps a topology view current, and
// multiplexes concurrent requests over the connection by opaque.
//
// Bootstrap, WriteAndSubscribe, Cancel and Stop may be called from any
// goroutine.  Response dispatch happens on the session's read
// goroutine, one packet at a time.
type Session struct {
	logger    *zap.Logger
	clientID  string
	id        string
	userAgent string

	bucketName        string
	username          string
	password          string
	requestedFeatures []mcbpx.HelloFeature
	enabledSaslMechs  []AuthMechanism
	bootstrapTimeout  time.Duration
	connectTimeout    time.Duration
	dialFunc          DialFunc

	baseCtx   context.Context
	cancelCtx context.CancelFunc

	origin    *Origin
	opaqueCtr atomic.Uint32
	stopped   atomic.Bool

	opaqueMap *mcbpx.OpaqueMap

	lock              sync.Mutex
	conn              net.Conn
	endpoint          Endpoint
	handler           messageHandler
	bootstrapCb       func(*ParsedConfig, error)
	bootstrapDeadline *time.Timer
	bootstrapped      bool
	supportedFeatures []mcbpx.HelloFeature
	supportsGCCCP     bool
	config            *ParsedConfig
	errMap            *ErrorMap

	outputLock sync.Mutex
	output     [][]byte

	writingLock sync.Mutex
	writing     [][]byte

	pendingLock sync.Mutex
	pending     [][]byte

	collections *collectionCache
}

func NewSession(opts *SessionOptions) (*Session, error) {
	logger := loggerOrNop(opts.Logger)

	var origin *Origin
	bucketName := opts.BucketName
	if len(opts.Endpoints) > 0 {
		var endpoints []Endpoint
		for _, addr := range opts.Endpoints {
			host, portStr, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			port, err := net.LookupPort("tcp", portStr)
			if err != nil {
				return nil, err
			}
			endpoints = append(endpoints, Endpoint{Host: host, Port: port})
		}

		var err error
		origin, err = NewOrigin(endpoints)
		if err != nil {
			return nil, err
		}
	} else {
		var connStrBucket string
		var err error
		origin, connStrBucket, err = OriginFromConnStr(opts.ConnectionString)
		if err != nil {
			return nil, err
		}
		if bucketName == "" {
			bucketName = connStrBucket
		}
	}

	requestedFeatures := opts.RequestedFeatures
	if len(requestedFeatures) == 0 {
		requestedFeatures = defaultRequestedFeatures()
	}

	enabledSaslMechs := opts.EnabledSaslMechs
	if len(enabledSaslMechs) == 0 {
		enabledSaslMechs = defaultSaslMechs
	}

	bootstrapTimeout := opts.BootstrapTimeout
	if bootstrapTimeout == 0 {
		bootstrapTimeout = defaultBootstrapTimeout
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}

	sessionID := uuid.NewString()
	sessionBucket := bucketName
	if sessionBucket == "" {
		sessionBucket = "-"
	}
	logger = logger.With(
		zap.String("clientId", opts.ClientID),
		zap.String("sessionId", sessionID[:8]),
		zap.String("bucket", sessionBucket),
	)

	baseCtx, cancelCtx := context.WithCancel(context.Background())

	s := &Session{
		logger:            logger,
		clientID:          opts.ClientID,
		id:                sessionID,
		userAgent:         "gocbsessx/" + buildVersion,
		bucketName:        bucketName,
		username:          opts.Username,
		password:          opts.Password,
		requestedFeatures: requestedFeatures,
		enabledSaslMechs:  enabledSaslMechs,
		bootstrapTimeout:  bootstrapTimeout,
		connectTimeout:    connectTimeout,
		dialFunc:          opts.DialFunc,
		baseCtx:           baseCtx,
		cancelCtx:         cancelCtx,
		origin:            origin,
		opaqueMap:         mcbpx.NewOpaqueMap(),
		supportsGCCCP:     true,
		collections:       newCollectionCache(),
	}

	return s, nil
}

func defaultRequestedFeatures() []mcbpx.HelloFeature {
	return []mcbpx.HelloFeature{
		mcbpx.HelloFeatureDatatype,
		mcbpx.HelloFeatureTCPNoDelay,
		mcbpx.HelloFeatureSeqNo,
		mcbpx.HelloFeatureXattr,
		mcbpx.HelloFeatureXerror,
		mcbpx.HelloFeatureSelectBucket,
		mcbpx.HelloFeatureSnappy,
		mcbpx.HelloFeatureJSON,
		mcbpx.HelloFeatureDuplex,
		mcbpx.HelloFeatureClusterMapNotif,
		mcbpx.HelloFeatureUnorderedExec,
		mcbpx.HelloFeatureDurations,
		mcbpx.HelloFeatureAltRequests,
		mcbpx.HelloFeatureSyncReplication,
		mcbpx.HelloFeatureCollections,
		mcbpx.HelloFeaturePreserveExpiry,
		mcbpx.HelloFeatureCreateAsDeleted,
		mcbpx.HelloFeatureReplaceBodyWithXattr,
	}
}

// ID returns the session's stable identity.
func (s *Session) ID() string {
	return s.id
}

// Bootstrap begins the connect-and-negotiate sequence.  cb is invoked
// exactly once: with the first installed configuration when the session
// becomes ready, or with an error on any terminal bootstrap failure or
// session stop.
func (s *Session) Bootstrap(cb func(*ParsedConfig, error)) {
	if s.stopped.Load() {
		cb(nil, ErrRequestCanceled)
		return
	}

	_, span := tracer.Start(s.baseCtx, "mcbp/bootstrap",
		trace.WithSpanKind(trace.SpanKindClient))

	deadline := time.AfterFunc(s.bootstrapTimeout, func() {
		if s.stopped.Load() {
			return
		}

		s.lock.Lock()
		if s.bootstrapped {
			s.lock.Unlock()
			return
		}
		deadlineCb := s.bootstrapCb
		s.bootstrapCb = nil
		s.lock.Unlock()

		if deadlineCb == nil {
			return
		}

		s.logger.Warn("unable to bootstrap in time")
		deadlineCb(nil, ErrUnambiguousTimeout)
		s.Stop()
	})

	s.lock.Lock()
	s.bootstrapCb = func(config *ParsedConfig, err error) {
		span.End()
		cb(config, err)
	}
	s.bootstrapDeadline = deadline
	s.lock.Unlock()

	go s.initiateBootstrap()
}

func (s *Session) initiateBootstrap() {
	for {
		if s.stopped.Load() {
			return
		}

		if s.origin.Exhausted() {
			s.logger.Debug("reached the end of list of bootstrap nodes, waiting before restart",
				zap.Duration("backoff", exhaustedListBackoff))
			select {
			case <-time.After(exhaustedListBackoff):
			case <-s.baseCtx.Done():
				return
			}
			s.origin.Restart()
			continue
		}

		endpoint := s.origin.NextAddress()
		s.logger.Debug("attempting to establish connection",
			zap.String("remote", endpoint.Address()))

		conn, err := s.dialEndpoint(endpoint)
		if err != nil {
			if s.stopped.Load() {
				return
			}
			s.logger.Warn("unable to connect",
				zap.String("remote", endpoint.Address()),
				zap.Error(err))
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
			_ = tcpConn.SetKeepAlive(true)
		}

		s.logger.Debug("connected", zap.String("remote", endpoint.Address()))

		s.lock.Lock()
		if s.stopped.Load() {
			s.lock.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.endpoint = endpoint
		s.lock.Unlock()

		handler := newBootstrapHandler(s)
		s.setHandler(handler)

		go s.readLoop(conn)

		handler.begin()
		return
	}
}

func (s *Session) dialEndpoint(endpoint Endpoint) (net.Conn, error) {
	if s.dialFunc != nil {
		ctx, cancel := context.WithTimeout(s.baseCtx, s.connectTimeout)
		defer cancel()
		return s.dialFunc(ctx, endpoint.Address())
	}

	resolveCtx, resolveCancel := context.WithTimeout(s.baseCtx, s.connectTimeout)
	addrs, err := net.DefaultResolver.LookupHost(resolveCtx, endpoint.Host)
	resolveCancel()
	if err != nil {
		return nil, &transportError{cause: ErrResolveFailed, wrapped: err}
	}

	var lastErr error
	for _, addr := range addrs {
		// the connect deadline is armed per dial attempt
		dialCtx, dialCancel := context.WithTimeout(s.baseCtx, s.connectTimeout)
		var dialer net.Dialer
		conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(addr, strconv.Itoa(endpoint.Port)))
		dialCancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}

	return nil, &transportError{cause: ErrConnectFailed, wrapped: lastErr}
}

func (s *Session) readLoop(conn net.Conn) {
	buf := make([]byte, readBufferSize)
	var parser mcbpx.Parser

	for {
		n, err := conn.Read(buf)
		if s.stopped.Load() {
			return
		}
		if err != nil {
			if err == io.EOF {
				s.logger.Debug("connection closed by peer")
			} else {
				s.logger.Error("IO error while reading from the socket", zap.Error(err))
			}
			s.Stop()
			return
		}

		parser.Feed(buf[:n])

		for {
			pak := &mcbpx.Packet{}
			res, err := parser.Next(pak)
			if res == mcbpx.ParseResultNeedData {
				break
			}
			if res == mcbpx.ParseResultFailure {
				s.logger.Error("malformed packet on the stream", zap.Error(err))
				s.Stop()
				return
			}

			if enablePacketLogging {
				s.logger.Debug("read packet",
					zap.String("magic", pak.Magic.String()),
					zap.String("opcode", pak.OpCode.Name()),
					zap.String("status", pak.Status.String()),
					zap.Uint32("opaque", pak.Opaque))
			}

			s.lock.Lock()
			handler := s.handler
			s.lock.Unlock()

			if handler != nil {
				handler.Handle(pak)
			}

			if s.stopped.Load() {
				return
			}
		}
	}
}

func (s *Session) setHandler(handler messageHandler) {
	s.lock.Lock()
	oldHandler := s.handler
	s.handler = handler
	s.lock.Unlock()

	if oldHandler != nil && oldHandler != handler {
		oldHandler.Stop()
	}
}

// NextOpaque produces a fresh request identifier.  Wrapping is benign:
// uniqueness is only needed against currently pending opaques.
func (s *Session) NextOpaque() uint32 {
	return s.opaqueCtr.Inc()
}

// WriteAndSubscribe registers cb under the packet's opaque (assigned by
// the caller via NextOpaque) and enqueues the frame.  Frames enqueued
// before the session is ready are buffered and flushed in order once
// bootstrap completes.  On a stopped session cb fails synchronously
// with ErrRequestCanceled.
func (s *Session) WriteAndSubscribe(pak *mcbpx.Packet, cb mcbpx.DispatchCallback) {
	if s.stopped.Load() {
		s.logger.Warn("canceling operation, tried to write to a stopped session",
			zap.Uint32("opaque", pak.Opaque))
		cb(nil, ErrRequestCanceled)
		return
	}

	buf, err := mcbpx.EncodePacket(pak)
	if err != nil {
		cb(nil, err)
		return
	}

	if err := s.opaqueMap.Register(pak.Opaque, cb); err != nil {
		cb(nil, err)
		return
	}

	// a stop may have raced the registration above; make sure the
	// continuation cannot be stranded
	if s.stopped.Load() {
		if s.opaqueMap.Cancel(pak.Opaque, ErrRequestCanceled) {
			sessionCanceledRequests.Add(s.baseCtx, 1)
		}
		return
	}

	sessionDispatchedRequests.Add(s.baseCtx, 1)

	s.lock.Lock()
	ready := s.bootstrapped && s.conn != nil
	s.lock.Unlock()

	if ready {
		s.write(buf)
		s.flush()
	} else {
		s.pendingLock.Lock()
		s.pending = append(s.pending, buf)
		s.pendingLock.Unlock()
	}
}

// Cancel removes the continuation registered under opaque and fires it
// with err.  Unregistered opaques are a no-op.
func (s *Session) Cancel(opaque uint32, err error) {
	if s.stopped.Load() {
		return
	}

	if s.opaqueMap.Cancel(opaque, err) {
		s.logger.Debug("canceled operation",
			zap.Uint32("opaque", opaque),
			zap.Error(err))
		sessionCanceledRequests.Add(s.baseCtx, 1)
	}
}

// Stop tears the session down: the socket is closed, timers are
// canceled, and every outstanding continuation fires exactly once with
// ErrRequestCanceled.  Stop is idempotent.
func (s *Session) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	s.logger.Debug("stopping session")
	s.cancelCtx()

	s.lock.Lock()
	conn := s.conn
	handler := s.handler
	cb := s.bootstrapCb
	s.bootstrapCb = nil
	bootstrapped := s.bootstrapped
	deadline := s.bootstrapDeadline
	s.bootstrapDeadline = nil
	s.lock.Unlock()

	if deadline != nil {
		deadline.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if !bootstrapped && cb != nil {
		cb(nil, ErrRequestCanceled)
	}
	if handler != nil {
		handler.Stop()
	}

	canceled := s.opaqueMap.Len()
	s.opaqueMap.CancelAll(ErrRequestCanceled)
	if canceled > 0 {
		sessionCanceledRequests.Add(context.Background(), int64(canceled))
	}

	s.outputLock.Lock()
	s.output = nil
	s.outputLock.Unlock()
	s.pendingLock.Lock()
	s.pending = nil
	s.pendingLock.Unlock()
}

// invokeBootstrapHandler completes the bootstrap phase, successfully or
// not.  On success the session swaps to the ready handler and replays
// any writes that queued up during negotiation.
func (s *Session) invokeBootstrapHandler(bootstrapErr error) {
	s.lock.Lock()
	cb := s.bootstrapCb
	alreadyBootstrapped := s.bootstrapped
	if !alreadyBootstrapped {
		s.bootstrapCb = nil
	}
	deadline := s.bootstrapDeadline
	s.bootstrapDeadline = nil
	config := s.config
	s.lock.Unlock()

	if deadline != nil {
		deadline.Stop()
	}

	if bootstrapErr != nil {
		if !alreadyBootstrapped && cb != nil {
			cb(nil, bootstrapErr)
		}
		s.Stop()
		return
	}

	s.lock.Lock()
	s.bootstrapped = true
	s.lock.Unlock()

	s.setHandler(newReadyHandler(s))

	s.pendingLock.Lock()
	pending := s.pending
	s.pending = nil
	s.pendingLock.Unlock()

	if len(pending) > 0 {
		for _, buf := range pending {
			s.write(buf)
		}
		s.flush()
	}

	if !alreadyBootstrapped && cb != nil {
		cb(config, nil)
	}
}

// write appends an encoded frame to the output buffer.  It never
// touches the socket itself; flush drives the single in-flight write.
func (s *Session) write(buf []byte) {
	if s.stopped.Load() {
		return
	}

	if enablePacketLogging && len(buf) >= 24 {
		s.logger.Debug("send",
			zap.String("header", hex.EncodeToString(buf[:24])))
	}

	s.outputLock.Lock()
	s.output = append(s.output, buf)
	s.outputLock.Unlock()
}

func (s *Session) flush() {
	if s.stopped.Load() {
		return
	}
	s.doWrite()
}

func (s *Session) writeAndFlush(buf []byte) {
	if s.stopped.Load() {
		return
	}
	s.write(buf)
	s.flush()
}

// doWrite moves the accumulated output onto the socket.  At most one
// write is outstanding per socket; producers that arrive in the
// meantime accumulate in output and are drained when the write
// completes.
func (s *Session) doWrite() {
	s.writingLock.Lock()
	s.outputLock.Lock()
	if len(s.writing) != 0 || len(s.output) == 0 {
		s.outputLock.Unlock()
		s.writingLock.Unlock()
		return
	}
	s.writing, s.output = s.output, s.writing

	bufs := make(net.Buffers, len(s.writing))
	copy(bufs, s.writing)
	s.outputLock.Unlock()
	s.writingLock.Unlock()

	s.lock.Lock()
	conn := s.conn
	s.lock.Unlock()
	if conn == nil {
		return
	}

	go func() {
		_, err := bufs.WriteTo(conn)
		if s.stopped.Load() {
			return
		}
		if err != nil {
			s.logger.Error("IO error while writing to the socket", zap.Error(err))
			s.Stop()
			return
		}

		s.writingLock.Lock()
		s.writing = s.writing[:0]
		s.writingLock.Unlock()

		s.doWrite()
	}()
}

// updateConfiguration installs a new topology view iff it is strictly
// newer than the stored one.
func (s *Session) updateConfiguration(config *ParsedConfig) {
	if s.stopped.Load() {
		return
	}

	s.lock.Lock()
	if s.config != nil && config.Compare(s.config) <= 0 {
		s.lock.Unlock()
		return
	}

	for nodeIdx := range config.Nodes {
		if config.Nodes[nodeIdx].ThisNode && config.Nodes[nodeIdx].Hostname == "" {
			config.Nodes[nodeIdx].Hostname = s.endpoint.Host
		}
	}

	s.config = config
	s.lock.Unlock()

	sessionConfigUpdates.Add(context.Background(), 1)
	s.logger.Debug("installed new configuration",
		zap.Int64("rev", config.RevID),
		zap.Int64("revEpoch", config.RevEpoch),
		zap.Int("numNodes", len(config.Nodes)))
}

func (s *Session) setSupportedFeatures(features []mcbpx.HelloFeature) {
	s.lock.Lock()
	s.supportedFeatures = features
	s.lock.Unlock()
}

func (s *Session) setErrorMap(errMap *ErrorMap) {
	s.lock.Lock()
	s.errMap = errMap
	s.lock.Unlock()
}

func (s *Session) markNoGCCCP() {
	s.lock.Lock()
	s.supportsGCCCP = false
	s.lock.Unlock()
}

func (s *Session) remoteEndpoint() Endpoint {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.endpoint
}

// RemoteAddress returns the address of the connected endpoint.
func (s *Session) RemoteAddress() string {
	return s.remoteEndpoint().Address()
}

// BucketName returns the bucket this session was configured for, or an
// empty string for a cluster-level session.
func (s *Session) BucketName() string {
	return s.bucketName
}

// SupportsFeature reports whether the peer acknowledged a feature in
// the HELLO negotiation.
func (s *Session) SupportsFeature(feature mcbpx.HelloFeature) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Contains(s.supportedFeatures, feature)
}

// SupportedFeatures returns a snapshot of the negotiated feature set.
func (s *Session) SupportedFeatures() []mcbpx.HelloFeature {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.supportedFeatures)
}

// SupportsGCCCP reports whether the peer can serve cluster-level
// configuration without a selected bucket.
func (s *Session) SupportsGCCCP() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.supportsGCCCP
}

// HasConfig reports whether a topology view has been installed yet.
func (s *Session) HasConfig() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.config != nil
}

// Config returns the current topology view, or nil before the first
// install.
func (s *Session) Config() *ParsedConfig {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.config
}

// NodeIndex returns the index of the node this session serves within
// the current topology view, or -1 when unknown.
func (s *Session) NodeIndex() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.config == nil {
		return -1
	}
	return s.config.ThisNodeIndex()
}

// ErrorMap returns the peer-published error map, or nil when xerror was
// not negotiated.
func (s *Session) ErrorMap() *ErrorMap {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.errMap
}

// CollectionID resolves a `scope.collection` path against the cached
// manifest entries.
func (s *Session) CollectionID(path string) (uint32, bool) {
	return s.collections.Get(path)
}

// UpdateCollectionID records a collection id resolved by the layer
// above (typically from a GET-COLLECTION-ID response).
func (s *Session) UpdateCollectionID(path string, cid uint32) {
	if s.stopped.Load() {
		return
	}
	s.collections.Update(path, cid)
}

// ResetCollectionCache drops all cached collection ids, typically after
// a configuration invalidation.
func (s *Session) ResetCollectionCache() {
	s.collections.Reset()
}

type transportError struct {
	cause   error
	wrapped error
}

func (e *transportError) Error() string {
	if e.wrapped != nil {
		return e.cause.Error() + ": " + e.wrapped.Error()
	}
	return e.cause.Error()
}

func (e *transportError) Unwrap() error {
	return e.cause
}
