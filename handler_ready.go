package gocbsessx

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/couchbase/gocbsessx/mcbpx"
)

// configRefreshPeriod is how often a GCCCP-capable session polls the
// peer for fresh topology, covering peers that never push.
const configRefreshPeriod = 2500 * time.Millisecond

// readyHandler is the steady-state dispatcher: it routes client
// responses to their registered continuations by opaque, adopts
// server-pushed topology notifications, and periodically refreshes the
// configuration on GCCCP-capable peers.
type readyHandler struct {
	session *Session
	stopped atomic.Bool

	heartbeatLock sync.Mutex
	heartbeat     *time.Timer
}

func newReadyHandler(session *Session) *readyHandler {
	h := &readyHandler{
		session: session,
	}

	if session.SupportsGCCCP() {
		h.fetchConfig()
	}

	return h
}

func (h *readyHandler) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}

	h.heartbeatLock.Lock()
	if h.heartbeat != nil {
		h.heartbeat.Stop()
		h.heartbeat = nil
	}
	h.heartbeatLock.Unlock()
}

// fetchConfig issues a config refresh and re-arms the heartbeat.  The
// request is self-handling: the response is consumed by the
// get-cluster-config arm below with no registered continuation.
func (h *readyHandler) fetchConfig() {
	if h.stopped.Load() || h.session.stopped.Load() {
		return
	}

	configBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeGetClusterConfig,
		Opaque: h.session.NextOpaque(),
	})
	if err != nil {
		h.session.logger.Warn("failed to encode config refresh", zap.Error(err))
		return
	}
	h.session.writeAndFlush(configBuf)

	h.heartbeatLock.Lock()
	if !h.stopped.Load() {
		h.heartbeat = time.AfterFunc(configRefreshPeriod, h.fetchConfig)
	}
	h.heartbeatLock.Unlock()
}

// isRoutableOpCode reports whether responses for this opcode are routed
// to registered continuations.  Opcode bodies are not interpreted here.
func isRoutableOpCode(opcode mcbpx.OpCode) bool {
	switch opcode {
	case mcbpx.OpCodeGet,
		mcbpx.OpCodeGetLocked,
		mcbpx.OpCodeGAT,
		mcbpx.OpCodeTouch,
		mcbpx.OpCodeAdd,
		mcbpx.OpCodeSet,
		mcbpx.OpCodeReplace,
		mcbpx.OpCodeDelete,
		mcbpx.OpCodeAppend,
		mcbpx.OpCodePrepend,
		mcbpx.OpCodeIncrement,
		mcbpx.OpCodeDecrement,
		mcbpx.OpCodeObserve,
		mcbpx.OpCodeUnlockKey,
		mcbpx.OpCodeGetReplica,
		mcbpx.OpCodeSubDocMultiLookup,
		mcbpx.OpCodeSubDocMultiMutation,
		mcbpx.OpCodeCollectionsGetID,
		mcbpx.OpCodeCollectionsGetManifest:
		return true
	}
	return false
}

func (h *readyHandler) Handle(pak *mcbpx.Packet) {
	if h.stopped.Load() {
		return
	}

	switch pak.Magic {
	case mcbpx.MagicRes, mcbpx.MagicResExt:
		h.handleClientResponse(pak)

	case mcbpx.MagicServerReq:
		h.handleServerRequest(pak)

	case mcbpx.MagicReq, mcbpx.MagicReqExt, mcbpx.MagicServerRes:
		h.session.logger.Warn("unexpected magic in steady state",
			zap.String("magic", pak.Magic.String()),
			zap.String("opcode", pak.OpCode.Name()),
			zap.Uint32("opaque", pak.Opaque))
	}
}

func (h *readyHandler) handleClientResponse(pak *mcbpx.Packet) {
	session := h.session

	if pak.Magic == mcbpx.MagicResExt && len(pak.FramingExtras) > 0 {
		// decoded transparently; only the server duration is surfaced,
		// and only to the debug log for now
		_ = mcbpx.IterExtFrames(pak.FramingExtras, func(code mcbpx.ExtFrameCode, body []byte) {
			if code == mcbpx.ExtFrameCodeResServerDuration {
				if dura, err := mcbpx.DecodeServerDurationExtFrame(body); err == nil {
					session.logger.Debug("server duration",
						zap.Uint32("opaque", pak.Opaque),
						zap.Duration("duration", dura))
				}
			}
		})
	}

	if pak.OpCode == mcbpx.OpCodeGetClusterConfig {
		// the configuration side effect is applied before any registered
		// continuation fires, so subscribers observe the new view
		if pak.Status == mcbpx.StatusSuccess {
			h.installConfig(pak)
			session.opaqueMap.Invoke(pak.Opaque, pak, nil)
		} else {
			session.logger.Warn("unexpected cluster config refresh status",
				zap.String("status", pak.Status.String()))
			session.opaqueMap.Invoke(pak.Opaque, pak, MapStatusCode(pak.OpCode, pak.Status))
		}
		return
	}

	if !isRoutableOpCode(pak.OpCode) {
		session.logger.Warn("unexpected client response",
			zap.String("opcode", pak.OpCode.Name()),
			zap.Uint32("opaque", pak.Opaque))
		return
	}

	mappedErr := MapStatusCode(pak.OpCode, pak.Status)
	if mappedErr == ErrProtocol {
		h.logUnknownStatus(pak)
	}

	if !session.opaqueMap.Invoke(pak.Opaque, pak, mappedErr) {
		session.logger.Debug("unexpected orphan response",
			zap.String("opcode", pak.OpCode.Name()),
			zap.Uint32("opaque", pak.Opaque))
		sessionOrphanedResponses.Add(context.Background(), 1)
	}
}

// logUnknownStatus records a status that has no mapping, annotated with
// the peer's own error map entry when one was fetched at bootstrap.
func (h *readyHandler) logUnknownStatus(pak *mcbpx.Packet) {
	fields := []zap.Field{
		zap.String("opcode", pak.OpCode.Name()),
		zap.String("status", pak.Status.String()),
	}
	if errMap := h.session.ErrorMap(); errMap != nil {
		if errData, ok := errMap.Error(uint16(pak.Status)); ok {
			fields = append(fields,
				zap.String("errorName", errData.Name),
				zap.String("errorDesc", errData.Description))
		}
	}
	h.session.logger.Warn("unknown status code", fields...)
}

func (h *readyHandler) handleServerRequest(pak *mcbpx.Packet) {
	session := h.session

	switch mcbpx.ServerOpCode(pak.OpCode) {
	case mcbpx.ServerOpCodeClusterMapChangeNotification:
		value, _, err := maybeDecompressValue(pak.Datatype, pak.Value)
		if err != nil {
			session.logger.Warn("failed to decompress pushed config", zap.Error(err))
			return
		}

		endpoint := session.remoteEndpoint()
		config, err := ConfigParser{}.ParseTerseConfig(value, endpoint.Host)
		if err != nil {
			session.logger.Warn("failed to parse pushed config", zap.Error(err))
			return
		}

		notificationBucket := string(pak.Key)

		// adopt the notification only when it applies to this session's
		// bucket: a cluster-level push carries no bucket at all, and a
		// bucket-level push must name ours
		if (notificationBucket == "" && config.BucketName == "") ||
			(session.bucketName != "" && notificationBucket != "" &&
				session.bucketName == notificationBucket) {
			session.updateConfiguration(config)
		}

	default:
		session.logger.Warn("unexpected server request",
			zap.String("opcode", mcbpx.ServerOpCode(pak.OpCode).Name()),
			zap.Uint32("opaque", pak.Opaque))
	}
}

func (h *readyHandler) installConfig(pak *mcbpx.Packet) {
	session := h.session

	value, _, err := maybeDecompressValue(pak.Datatype, pak.Value)
	if err != nil {
		session.logger.Warn("failed to decompress cluster config", zap.Error(err))
		return
	}

	endpoint := session.remoteEndpoint()
	config, err := ConfigParser{}.ParseTerseConfig(value, endpoint.Host)
	if err != nil {
		session.logger.Warn("failed to parse cluster config", zap.Error(err))
		return
	}

	session.updateConfiguration(config)
}
