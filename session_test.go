package gocbsessx

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/gocbsessx/contrib/cbconfig"
	"github.com/couchbase/gocbsessx/mcbpx"
)

type bootstrapResult struct {
	Config *ParsedConfig
	Err    error
}

func makeTestConfigJson(t *testing.T, rev int, bucket string, hostnames ...string) []byte {
	cfg := cbconfig.TerseConfigJson{
		Rev:  rev,
		Name: bucket,
	}
	for hostIdx, hostname := range hostnames {
		cfg.NodesExt = append(cfg.NodesExt, cbconfig.TerseExtNodeJson{
			Hostname: hostname,
			ThisNode: hostIdx == 0,
			Services: &cbconfig.TerseExtNodePortsJson{
				Kv:   11210,
				Mgmt: 8091,
			},
		})
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	return data
}

func makeTestErrMapJson(t *testing.T) []byte {
	data, err := json.Marshal(map[string]interface{}{
		"version":  2,
		"revision": 1,
		"errors": map[string]interface{}{
			"1":  map[string]interface{}{"name": "KEY_ENOENT", "desc": "key not found", "attrs": []string{"item-only"}},
			"20": map[string]interface{}{"name": "AUTH_ERROR", "desc": "auth failed", "attrs": []string{"conn-state-invalidated"}},
			"86": map[string]interface{}{"name": "ETMPFAIL", "desc": "temporary failure", "attrs": []string{"temp", "retry-now"}},
		},
	})
	require.NoError(t, err)
	return data
}

// fakeServer speaks real frames over the far side of a net.Pipe,
// scripted per opcode.
type fakeServer struct {
	t    *testing.T
	conn net.Conn

	configValue  []byte
	configStatus mcbpx.Status
	selectStatus mcbpx.Status
	errMapValue  []byte

	// onRequest intercepts packets before the default handling; it
	// returns true when the packet was consumed.
	onRequest func(pak *mcbpx.Packet) bool

	sendLock sync.Mutex
}

func (srv *fakeServer) run() {
	buf := make([]byte, 16384)
	var parser mcbpx.Parser

	for {
		n, err := srv.conn.Read(buf)
		if err != nil {
			return
		}

		parser.Feed(buf[:n])

		for {
			pak := &mcbpx.Packet{}
			res, err := parser.Next(pak)
			if err != nil || res != mcbpx.ParseResultOK {
				break
			}

			srv.handle(pak)
		}
	}
}

func (srv *fakeServer) handle(pak *mcbpx.Packet) {
	if srv.onRequest != nil && srv.onRequest(pak) {
		return
	}

	switch pak.OpCode {
	case mcbpx.OpCodeHello:
		// acknowledge every requested feature
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeHello,
			Opaque: pak.Opaque,
			Value:  pak.Value,
		})
	case mcbpx.OpCodeSASLListMechs:
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeSASLListMechs,
			Opaque: pak.Opaque,
			Value:  []byte("SCRAM-SHA512 SCRAM-SHA256 PLAIN"),
		})
	case mcbpx.OpCodeSASLAuth:
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeSASLAuth,
			Opaque: pak.Opaque,
		})
	case mcbpx.OpCodeGetErrorMap:
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeGetErrorMap,
			Opaque: pak.Opaque,
			Value:  srv.errMapValue,
		})
	case mcbpx.OpCodeSelectBucket:
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeSelectBucket,
			Opaque: pak.Opaque,
			Status: srv.selectStatus,
		})
	case mcbpx.OpCodeGetClusterConfig:
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeGetClusterConfig,
			Opaque: pak.Opaque,
			Status: srv.configStatus,
			Value:  srv.configValue,
		})
	}
}

func (srv *fakeServer) send(pak *mcbpx.Packet) {
	buf, err := mcbpx.EncodePacket(pak)
	if err != nil {
		srv.t.Errorf("fake server failed to encode packet: %s", err)
		return
	}

	srv.sendLock.Lock()
	_, _ = srv.conn.Write(buf)
	srv.sendLock.Unlock()
}

func newTestSession(t *testing.T, mutate func(opts *SessionOptions, srv *fakeServer)) (*Session, *fakeServer) {
	srvConn, cliConn := net.Pipe()

	srv := &fakeServer{
		t:           t,
		conn:        srvConn,
		configValue: makeTestConfigJson(t, 17, "", "$HOST", "testnode-b"),
		errMapValue: makeTestErrMapJson(t),
	}

	opts := &SessionOptions{
		ClientID:         "test-client",
		Endpoints:        []string{"testnode-a:11210"},
		Username:         "dave",
		Password:         "asecretdontlook",
		EnabledSaslMechs: []AuthMechanism{PlainAuthMechanism},
		DialFunc: func(ctx context.Context, address string) (net.Conn, error) {
			return cliConn, nil
		},
	}

	if mutate != nil {
		mutate(opts, srv)
	}

	session, err := NewSession(opts)
	require.NoError(t, err)

	go srv.run()

	t.Cleanup(func() {
		session.Stop()
		_ = srvConn.Close()
	})

	return session, srv
}

func bootstrapTestSession(t *testing.T, session *Session) *ParsedConfig {
	resultCh := make(chan bootstrapResult, 1)
	session.Bootstrap(func(config *ParsedConfig, err error) {
		resultCh <- bootstrapResult{Config: config, Err: err}
	})

	select {
	case res := <-resultCh:
		require.NoError(t, res.Err)
		return res.Config
	case <-time.After(5 * time.Second):
		t.Fatal("bootstrap did not complete in time")
		return nil
	}
}

func TestSessionBootstrapHappyPath(t *testing.T) {
	session, _ := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		opts.BucketName = "travel-sample"
		srv.configValue = makeTestConfigJson(t, 17, "travel-sample", "$HOST", "testnode-b")
	})

	config := bootstrapTestSession(t, session)

	require.NotNil(t, config)
	assert.Equal(t, int64(17), config.RevID)
	assert.Len(t, config.Nodes, 2)
	assert.Equal(t, 0, config.ThisNodeIndex())

	assert.True(t, session.SupportsGCCCP())
	assert.True(t, session.SupportsFeature(mcbpx.HelloFeatureXerror))
	assert.True(t, session.SupportsFeature(mcbpx.HelloFeatureSelectBucket))
	assert.True(t, session.SupportsFeature(mcbpx.HelloFeatureCollections))
	assert.True(t, session.SupportsFeature(mcbpx.HelloFeatureAltRequests))

	errMap := session.ErrorMap()
	require.NotNil(t, errMap)
	assert.Len(t, errMap.Errors, 3)

	errData, ok := errMap.Error(0x86)
	require.True(t, ok)
	assert.Equal(t, "ETMPFAIL", errData.Name)
}

func TestSessionBootstrapGCCCPFallback(t *testing.T) {
	session, _ := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		srv.configStatus = mcbpx.StatusNoBucket
		srv.configValue = nil
	})

	config := bootstrapTestSession(t, session)

	require.NotNil(t, config)
	assert.Equal(t, int64(0), config.RevID)
	require.Len(t, config.Nodes, 1)
	assert.Equal(t, "testnode-a", config.Nodes[0].Hostname)
	assert.Equal(t, 11210, config.Nodes[0].KvPort)

	assert.False(t, session.SupportsGCCCP())
}

func TestSessionBootstrapSelectBucketNoAccess(t *testing.T) {
	session, _ := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		opts.BucketName = "missing-bucket"
		srv.selectStatus = mcbpx.StatusAccessError
	})

	resultCh := make(chan bootstrapResult, 1)
	session.Bootstrap(func(config *ParsedConfig, err error) {
		resultCh <- bootstrapResult{Config: config, Err: err}
	})

	res := <-resultCh
	assert.ErrorIs(t, res.Err, ErrBucketNotFound)
	assert.Nil(t, res.Config)
}

func TestSessionBootstrapAuthFailure(t *testing.T) {
	session, _ := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		srv.onRequest = func(pak *mcbpx.Packet) bool {
			if pak.OpCode == mcbpx.OpCodeSASLAuth {
				srv.send(&mcbpx.Packet{
					Magic:  mcbpx.MagicRes,
					OpCode: mcbpx.OpCodeSASLAuth,
					Opaque: pak.Opaque,
					Status: mcbpx.StatusAuthError,
				})
				return true
			}
			return false
		}
	})

	resultCh := make(chan bootstrapResult, 1)
	session.Bootstrap(func(config *ParsedConfig, err error) {
		resultCh <- bootstrapResult{Config: config, Err: err}
	})

	res := <-resultCh
	assert.ErrorIs(t, res.Err, ErrAuthenticationFailure)
}

func TestSessionBootstrapDeadline(t *testing.T) {
	session, _ := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		opts.BootstrapTimeout = 100 * time.Millisecond
		srv.onRequest = func(pak *mcbpx.Packet) bool {
			// swallow everything, the peer never answers
			return true
		}
	})

	resultCh := make(chan bootstrapResult, 4)
	session.Bootstrap(func(config *ParsedConfig, err error) {
		resultCh <- bootstrapResult{Config: config, Err: err}
	})

	res := <-resultCh
	assert.ErrorIs(t, res.Err, ErrUnambiguousTimeout)

	// the continuation must have fired exactly once, even though the
	// deadline also stops the session
	select {
	case <-resultCh:
		t.Fatal("bootstrap continuation fired more than once")
	case <-time.After(250 * time.Millisecond):
	}
}

func TestSessionMultiplexedDispatch(t *testing.T) {
	type gotResponse struct {
		Opaque uint32
		Err    error
	}

	var reqLock sync.Mutex
	var gets []*mcbpx.Packet

	session, srv := newTestSession(t, nil)

	respondAll := make(chan struct{})
	srv.onRequest = func(pak *mcbpx.Packet) bool {
		if pak.OpCode != mcbpx.OpCodeGet {
			return false
		}

		reqLock.Lock()
		gets = append(gets, pak)
		ready := len(gets) == 3
		reqLock.Unlock()

		if ready {
			close(respondAll)
		}
		return true
	}

	bootstrapTestSession(t, session)

	respCh := make(chan gotResponse, 3)
	var opaques []uint32
	for i := 0; i < 3; i++ {
		opaque := session.NextOpaque()
		opaques = append(opaques, opaque)
		session.WriteAndSubscribe(&mcbpx.Packet{
			Magic:  mcbpx.MagicReq,
			OpCode: mcbpx.OpCodeGet,
			Opaque: opaque,
			Key:    []byte("some-key"),
		}, func(pak *mcbpx.Packet, err error) {
			respCh <- gotResponse{Opaque: pak.Opaque, Err: err}
		})
	}

	select {
	case <-respondAll:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive all requests in time")
	}

	// reply out of submission order: 2, 1, 3
	for _, reqIdx := range []int{1, 0, 2} {
		reqLock.Lock()
		req := gets[reqIdx]
		reqLock.Unlock()

		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeGet,
			Opaque: req.Opaque,
			Value:  []byte("some-value"),
		})
	}

	var fired []uint32
	for i := 0; i < 3; i++ {
		select {
		case resp := <-respCh:
			require.NoError(t, resp.Err)
			fired = append(fired, resp.Opaque)
		case <-time.After(5 * time.Second):
			t.Fatal("continuations did not fire in time")
		}
	}

	assert.Equal(t, []uint32{opaques[1], opaques[0], opaques[2]}, fired)
	assert.Equal(t, 0, session.opaqueMap.Len())
}

func TestSessionStatusMappedOnDispatch(t *testing.T) {
	session, srv := newTestSession(t, nil)
	srv.onRequest = func(pak *mcbpx.Packet) bool {
		if pak.OpCode != mcbpx.OpCodeAdd {
			return false
		}
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeAdd,
			Opaque: pak.Opaque,
			Status: mcbpx.StatusKeyExists,
		})
		return true
	}

	bootstrapTestSession(t, session)

	errCh := make(chan error, 1)
	session.WriteAndSubscribe(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeAdd,
		Opaque: session.NextOpaque(),
		Key:    []byte("some-key"),
	}, func(pak *mcbpx.Packet, err error) {
		errCh <- err
	})

	assert.ErrorIs(t, <-errCh, ErrDocumentExists)
}

func TestSessionServerPushedTopology(t *testing.T) {
	session, srv := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		opts.BucketName = "b"
		srv.configValue = makeTestConfigJson(t, 17, "b", "$HOST")
	})

	bootstrapTestSession(t, session)

	srv.send(&mcbpx.Packet{
		Magic:  mcbpx.MagicServerReq,
		OpCode: mcbpx.OpCode(mcbpx.ServerOpCodeClusterMapChangeNotification),
		Opaque: 900,
		Key:    []byte("b"),
		Value:  makeTestConfigJson(t, 18, "b", "$HOST"),
	})

	require.Eventually(t, func() bool {
		return session.Config().RevID == 18
	}, 5*time.Second, 10*time.Millisecond)

	// a stale revision for the same bucket must be ignored
	srv.send(&mcbpx.Packet{
		Magic:  mcbpx.MagicServerReq,
		OpCode: mcbpx.OpCode(mcbpx.ServerOpCodeClusterMapChangeNotification),
		Opaque: 901,
		Key:    []byte("b"),
		Value:  makeTestConfigJson(t, 5, "b", "$HOST"),
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(18), session.Config().RevID)
}

func TestSessionPushedTopologyForOtherBucketIgnored(t *testing.T) {
	session, srv := newTestSession(t, func(opts *SessionOptions, srv *fakeServer) {
		opts.BucketName = "b"
		srv.configValue = makeTestConfigJson(t, 17, "b", "$HOST")
	})

	bootstrapTestSession(t, session)

	srv.send(&mcbpx.Packet{
		Magic:  mcbpx.MagicServerReq,
		OpCode: mcbpx.OpCode(mcbpx.ServerOpCodeClusterMapChangeNotification),
		Opaque: 900,
		Key:    []byte("other-bucket"),
		Value:  makeTestConfigJson(t, 99, "other-bucket", "$HOST"),
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(17), session.Config().RevID)
}

func TestSessionHardCancel(t *testing.T) {
	session, srv := newTestSession(t, nil)
	srv.onRequest = func(pak *mcbpx.Packet) bool {
		// leave data-plane requests unanswered
		return pak.OpCode == mcbpx.OpCodeGet
	}

	bootstrapTestSession(t, session)

	errCh := make(chan error, 20)
	for i := 0; i < 10; i++ {
		session.WriteAndSubscribe(&mcbpx.Packet{
			Magic:  mcbpx.MagicReq,
			OpCode: mcbpx.OpCodeGet,
			Opaque: session.NextOpaque(),
			Key:    []byte("some-key"),
		}, func(pak *mcbpx.Packet, err error) {
			errCh <- err
		})
	}

	session.Stop()

	for i := 0; i < 10; i++ {
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrRequestCanceled)
		case <-time.After(time.Second):
			t.Fatalf("continuation %d did not fire", i)
		}
	}

	assert.Equal(t, 0, session.opaqueMap.Len())

	// stopping again must not produce a second round of firings
	session.Stop()
	select {
	case <-errCh:
		t.Fatal("continuation fired twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionWriteAfterStop(t *testing.T) {
	session, _ := newTestSession(t, nil)
	bootstrapTestSession(t, session)
	session.Stop()

	var firedErr error
	session.WriteAndSubscribe(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeGet,
		Opaque: session.NextOpaque(),
	}, func(pak *mcbpx.Packet, err error) {
		firedErr = err
	})

	// the continuation fails synchronously on a stopped session
	assert.ErrorIs(t, firedErr, ErrRequestCanceled)
}

func TestSessionCancelUnregisteredIsNoop(t *testing.T) {
	session, _ := newTestSession(t, nil)
	bootstrapTestSession(t, session)

	session.Cancel(999999, errors.New("nope"))
	assert.Equal(t, 0, session.opaqueMap.Len())
}

func TestSessionPendingWritesFlushOnReady(t *testing.T) {
	session, srv := newTestSession(t, nil)
	srv.onRequest = func(pak *mcbpx.Packet) bool {
		if pak.OpCode != mcbpx.OpCodeGet {
			return false
		}
		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeGet,
			Opaque: pak.Opaque,
			Value:  []byte("some-value"),
		})
		return true
	}

	resultCh := make(chan bootstrapResult, 1)
	session.Bootstrap(func(config *ParsedConfig, err error) {
		resultCh <- bootstrapResult{Config: config, Err: err}
	})

	// subscribe before the session is ready; the frame must queue in the
	// pending buffer and flush once bootstrap completes
	respCh := make(chan error, 1)
	session.WriteAndSubscribe(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeGet,
		Opaque: session.NextOpaque(),
		Key:    []byte("some-key"),
	}, func(pak *mcbpx.Packet, err error) {
		respCh <- err
	})

	res := <-resultCh
	require.NoError(t, res.Err)

	select {
	case err := <-respCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pending write was not flushed")
	}
}

func TestSessionDialFailover(t *testing.T) {
	srvConn, cliConn := net.Pipe()
	srv := &fakeServer{
		t:           t,
		conn:        srvConn,
		configValue: makeTestConfigJson(t, 3, "", "$HOST"),
		errMapValue: makeTestErrMapJson(t),
	}
	go srv.run()
	defer func() { _ = srvConn.Close() }()

	var dialLock sync.Mutex
	var dialed []string

	session, err := NewSession(&SessionOptions{
		ClientID:         "test-client",
		Endpoints:        []string{"refused:11210", "blackhole:11210", "good:11210"},
		Username:         "dave",
		Password:         "asecretdontlook",
		EnabledSaslMechs: []AuthMechanism{PlainAuthMechanism},
		ConnectTimeout:   100 * time.Millisecond,
		DialFunc: func(ctx context.Context, address string) (net.Conn, error) {
			dialLock.Lock()
			dialed = append(dialed, address)
			dialLock.Unlock()

			switch address {
			case "refused:11210":
				return nil, errors.New("connection refused")
			case "blackhole:11210":
				// hangs until the connect deadline expires
				<-ctx.Done()
				return nil, ctx.Err()
			default:
				return cliConn, nil
			}
		},
	})
	require.NoError(t, err)
	defer session.Stop()

	config := bootstrapTestSession(t, session)
	require.NotNil(t, config)
	assert.Equal(t, int64(3), config.RevID)

	dialLock.Lock()
	defer dialLock.Unlock()
	assert.Equal(t, []string{"refused:11210", "blackhole:11210", "good:11210"}, dialed)
	assert.Equal(t, "good:11210", session.RemoteAddress())
}

func TestSessionConfigRefreshUpdatesView(t *testing.T) {
	var refreshLock sync.Mutex
	refreshRev := 17

	session, srv := newTestSession(t, nil)
	srv.onRequest = func(pak *mcbpx.Packet) bool {
		if pak.OpCode != mcbpx.OpCodeGetClusterConfig {
			return false
		}

		refreshLock.Lock()
		rev := refreshRev
		refreshRev++
		refreshLock.Unlock()

		srv.send(&mcbpx.Packet{
			Magic:  mcbpx.MagicRes,
			OpCode: mcbpx.OpCodeGetClusterConfig,
			Opaque: pak.Opaque,
			Value:  makeTestConfigJson(t, rev, "", "$HOST"),
		})
		return true
	}

	bootstrapTestSession(t, session)

	// the ready handler fires an immediate refresh when GCCCP is
	// supported, so the view advances past the bootstrap revision
	require.Eventually(t, func() bool {
		return session.Config().RevID >= 18
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSessionCollectionCache(t *testing.T) {
	session, _ := newTestSession(t, nil)

	cid, ok := session.CollectionID("_default._default")
	require.True(t, ok)
	assert.Equal(t, uint32(0), cid)

	_, ok = session.CollectionID("app.users")
	assert.False(t, ok)

	session.UpdateCollectionID("app.users", 9)
	cid, ok = session.CollectionID("app.users")
	require.True(t, ok)
	assert.Equal(t, uint32(9), cid)

	session.ResetCollectionCache()
	_, ok = session.CollectionID("app.users")
	assert.False(t, ok)
}
