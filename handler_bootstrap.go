package gocbsessx

import (
	"encoding/binary"
	"encoding/json"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/couchbase/gocbsessx/mcbpx"
)

const errorMapVersion = 2

// bootstrapHandler runs the negotiation sub-protocol over a freshly
// connected socket: HELLO, SASL-LIST-MECHS and SASL-AUTH are pipelined
// up front; the error map fetch, bucket selection and initial config
// fetch follow once authentication succeeds.  Dispatch is purely by
// opcode, so pipelining is safe.
type bootstrapHandler struct {
	session *Session
	sasl    *saslClient
	stopped atomic.Bool
}

func newBootstrapHandler(session *Session) *bootstrapHandler {
	sasl, err := newSaslClient(session.username, session.password, session.enabledSaslMechs)
	if err != nil {
		// enabledSaslMechs is defaulted during construction, so the only
		// way to get here is an explicitly bad mechanism list
		session.logger.Warn("invalid sasl configuration", zap.Error(err))
	}

	return &bootstrapHandler{
		session: session,
		sasl:    sasl,
	}
}

type helloUserAgentJson struct {
	Agent      string `json:"a"`
	Identifier string `json:"i"`
}

// begin enqueues the first pipelined batch of the negotiation.
func (h *bootstrapHandler) begin() {
	session := h.session

	if h.sasl == nil {
		h.complete(ErrAuthenticationFailure)
		return
	}

	userAgent, _ := json.Marshal(helloUserAgentJson{
		Agent:      session.userAgent,
		Identifier: session.clientID + "/" + session.id,
	})

	featureBytes := make([]byte, len(session.requestedFeatures)*2)
	for featIdx, featCode := range session.requestedFeatures {
		binary.BigEndian.PutUint16(featureBytes[featIdx*2:], uint16(featCode))
	}

	session.logger.Debug("sending hello",
		zap.ByteString("userAgent", userAgent),
		zap.Int("numRequestedFeatures", len(session.requestedFeatures)))

	helloBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeHello,
		Opaque: session.NextOpaque(),
		Key:    userAgent,
		Value:  featureBytes,
	})
	if err != nil {
		h.complete(err)
		return
	}
	session.write(helloBuf)

	listMechsBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeSASLListMechs,
		Opaque: session.NextOpaque(),
	})
	if err != nil {
		h.complete(err)
		return
	}
	session.write(listMechsBuf)

	saslPayload, err := h.sasl.Start()
	if err != nil {
		h.complete(ErrAuthenticationFailure)
		return
	}

	authBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeSASLAuth,
		Opaque: session.NextOpaque(),
		Key:    []byte(h.sasl.Name()),
		Value:  saslPayload,
	})
	if err != nil {
		h.complete(err)
		return
	}
	session.write(authBuf)

	session.flush()
}

func (h *bootstrapHandler) Stop() {
	h.stopped.Store(true)
}

func (h *bootstrapHandler) complete(err error) {
	h.stopped.Store(true)
	h.session.invokeBootstrapHandler(err)
}

// authSuccess enqueues the post-authentication batch.
func (h *bootstrapHandler) authSuccess() {
	session := h.session

	if session.SupportsFeature(mcbpx.HelloFeatureXerror) {
		valueBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(valueBuf, errorMapVersion)

		errMapBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
			Magic:  mcbpx.MagicReq,
			OpCode: mcbpx.OpCodeGetErrorMap,
			Opaque: session.NextOpaque(),
			Value:  valueBuf,
		})
		if err != nil {
			h.complete(err)
			return
		}
		session.write(errMapBuf)
	}

	if session.bucketName != "" {
		selectBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
			Magic:  mcbpx.MagicReq,
			OpCode: mcbpx.OpCodeSelectBucket,
			Opaque: session.NextOpaque(),
			Key:    []byte(session.bucketName),
		})
		if err != nil {
			h.complete(err)
			return
		}
		session.write(selectBuf)
	}

	configBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
		Magic:  mcbpx.MagicReq,
		OpCode: mcbpx.OpCodeGetClusterConfig,
		Opaque: session.NextOpaque(),
	})
	if err != nil {
		h.complete(err)
		return
	}
	session.write(configBuf)

	session.flush()
}

func (h *bootstrapHandler) Handle(pak *mcbpx.Packet) {
	if h.stopped.Load() {
		return
	}

	session := h.session

	switch pak.OpCode {
	case mcbpx.OpCodeHello:
		if pak.Status != mcbpx.StatusSuccess {
			session.logger.Warn("unexpected hello status during bootstrap",
				zap.String("status", pak.Status.String()))
			h.complete(ErrHandshakeFailure)
			return
		}

		if len(pak.Value)%2 != 0 {
			h.complete(ErrProtocol)
			return
		}

		numFeats := len(pak.Value) / 2
		features := make([]mcbpx.HelloFeature, numFeats)
		for featIdx := range features {
			features[featIdx] = mcbpx.HelloFeature(binary.BigEndian.Uint16(pak.Value[featIdx*2:]))
		}

		session.setSupportedFeatures(features)
		session.logger.Debug("negotiated features",
			zap.Stringers("features", features))

	case mcbpx.OpCodeSASLListMechs:
		if pak.Status != mcbpx.StatusSuccess {
			session.logger.Warn("unexpected sasl list mechs status during bootstrap",
				zap.String("status", pak.Status.String()))
			h.complete(ErrAuthenticationFailure)
			return
		}

		session.logger.Debug("peer advertised mechanisms",
			zap.ByteString("mechs", pak.Value))

	case mcbpx.OpCodeSASLAuth:
		h.handleSaslAuth(pak)

	case mcbpx.OpCodeSASLStep:
		if pak.Status == mcbpx.StatusSuccess {
			h.authSuccess()
			return
		}
		h.complete(ErrAuthenticationFailure)

	case mcbpx.OpCodeGetErrorMap:
		if pak.Status != mcbpx.StatusSuccess {
			session.logger.Warn("unexpected error map status during bootstrap",
				zap.String("status", pak.Status.String()))
			h.complete(ErrProtocol)
			return
		}

		errMap, err := ErrorMapParser{}.Parse(pak.Value)
		if err != nil {
			session.logger.Warn("failed to parse error map", zap.Error(err))
		} else {
			session.setErrorMap(errMap)
		}

	case mcbpx.OpCodeSelectBucket:
		switch pak.Status {
		case mcbpx.StatusSuccess:
			session.logger.Debug("selected bucket")
		case mcbpx.StatusAccessError:
			session.logger.Debug("unable to select bucket, probably the bucket does not exist")
			h.complete(ErrBucketNotFound)
		default:
			session.logger.Warn("unexpected select bucket status during bootstrap",
				zap.String("status", pak.Status.String()))
			h.complete(ErrBucketNotFound)
		}

	case mcbpx.OpCodeGetClusterConfig:
		h.handleClusterConfig(pak)

	default:
		session.logger.Warn("unexpected message during bootstrap",
			zap.String("opcode", pak.OpCode.Name()))
		h.complete(ErrProtocol)
	}
}

func (h *bootstrapHandler) handleSaslAuth(pak *mcbpx.Packet) {
	session := h.session

	switch pak.Status {
	case mcbpx.StatusSuccess:
		h.authSuccess()

	case mcbpx.StatusAuthContinue:
		done, payload, err := h.sasl.Step(pak.Value)
		if err != nil {
			session.logger.Error("unable to authenticate", zap.Error(err))
			h.complete(ErrAuthenticationFailure)
			return
		}

		if done {
			h.authSuccess()
			return
		}

		stepBuf, err := mcbpx.EncodePacket(&mcbpx.Packet{
			Magic:  mcbpx.MagicReq,
			OpCode: mcbpx.OpCodeSASLStep,
			Opaque: session.NextOpaque(),
			Key:    []byte(h.sasl.Name()),
			Value:  payload,
		})
		if err != nil {
			h.complete(err)
			return
		}
		session.writeAndFlush(stepBuf)

	default:
		session.logger.Warn("unexpected sasl auth status during bootstrap",
			zap.String("status", pak.Status.String()))
		h.complete(ErrAuthenticationFailure)
	}
}

func (h *bootstrapHandler) handleClusterConfig(pak *mcbpx.Packet) {
	session := h.session

	switch pak.Status {
	case mcbpx.StatusSuccess:
		value, _, err := maybeDecompressValue(pak.Datatype, pak.Value)
		if err != nil {
			h.complete(err)
			return
		}

		endpoint := session.remoteEndpoint()
		config, err := ConfigParser{}.ParseTerseConfig(value, endpoint.Host)
		if err != nil {
			session.logger.Warn("failed to parse cluster config", zap.Error(err))
			h.complete(ErrProtocol)
			return
		}

		session.updateConfiguration(config)
		h.complete(nil)

	case mcbpx.StatusNoBucket:
		if session.bucketName == "" {
			// bucket-less session against a server that wants a bucket
			// selected before serving configuration
			session.logger.Warn("this server does not support GCCCP, open a bucket before making any cluster-level command")
			session.markNoGCCCP()

			endpoint := session.remoteEndpoint()
			session.updateConfiguration(&ParsedConfig{
				Nodes: []ParsedConfigNode{{
					Hostname: endpoint.Host,
					KvPort:   endpoint.Port,
					ThisNode: true,
				}},
			})
			h.complete(nil)
			return
		}

		session.logger.Warn("unexpected cluster config status during bootstrap",
			zap.String("status", pak.Status.String()))
		h.complete(ErrProtocol)

	default:
		session.logger.Warn("unexpected cluster config status during bootstrap",
			zap.String("status", pak.Status.String()))
		h.complete(ErrProtocol)
	}
}
