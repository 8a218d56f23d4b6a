package gocbsessx

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"

	"github.com/couchbase/stellar-nebula/core/scram"
)

// AuthMechanism represents a type of auth that can be performed.
type AuthMechanism string

const (
	// PlainAuthMechanism represents that PLAIN auth should be performed.
	PlainAuthMechanism = AuthMechanism("PLAIN")

	// ScramSha1AuthMechanism represents that SCRAM SHA1 auth should be performed.
	ScramSha1AuthMechanism = AuthMechanism("SCRAM-SHA1")

	// ScramSha256AuthMechanism represents that SCRAM SHA256 auth should be performed.
	ScramSha256AuthMechanism = AuthMechanism("SCRAM-SHA256")

	// ScramSha512AuthMechanism represents that SCRAM SHA512 auth should be performed.
	ScramSha512AuthMechanism = AuthMechanism("SCRAM-SHA512")
)

// defaultSaslMechs is the mechanism preference order used when the
// caller does not specify one.
var defaultSaslMechs = []AuthMechanism{
	ScramSha512AuthMechanism,
	ScramSha256AuthMechanism,
	ScramSha1AuthMechanism,
	PlainAuthMechanism,
}

// saslClient is a pure state machine on byte slices covering the SCRAM
// family and PLAIN.  The session only sees Name/Start/Step, so SCRAM
// can be swapped without touching the handlers.
type saslClient struct {
	mech     AuthMechanism
	username string
	password string
	scramCli *scram.Client
}

func newSaslClient(username, password string, enabledMechs []AuthMechanism) (*saslClient, error) {
	if len(enabledMechs) == 0 {
		return nil, errors.New("must specify at least one allowed authentication mechanism")
	}

	// the first mechanism is attempted unambiguously; the peer's
	// advertised list is informational only
	mech := enabledMechs[0]

	var newHash func() hash.Hash
	switch mech {
	case ScramSha1AuthMechanism:
		newHash = sha1.New
	case ScramSha256AuthMechanism:
		newHash = sha256.New
	case ScramSha512AuthMechanism:
		newHash = sha512.New
	case PlainAuthMechanism:
	default:
		return nil, errors.New("unsupported mechanism: " + string(mech))
	}

	cli := &saslClient{
		mech:     mech,
		username: username,
		password: password,
	}
	if newHash != nil {
		cli.scramCli = scram.NewClient(newHash, username, password)
	}

	return cli, nil
}

func (c *saslClient) Name() AuthMechanism {
	return c.mech
}

// Start produces the initial client payload.
func (c *saslClient) Start() ([]byte, error) {
	if c.scramCli == nil {
		userBuf := []byte(c.username)
		passBuf := []byte(c.password)
		authData := make([]byte, 1+len(userBuf)+1+len(passBuf))
		authData[0] = 0
		copy(authData[1:], userBuf)
		authData[1+len(userBuf)] = 0
		copy(authData[1+len(userBuf)+1:], passBuf)
		return authData, nil
	}

	c.scramCli.Step(nil)
	if err := c.scramCli.Err(); err != nil {
		return nil, err
	}
	return c.scramCli.Out(), nil
}

// Step feeds a server challenge into the exchange.  done reports that
// the client considers the exchange complete and has no further
// payload to send.
func (c *saslClient) Step(challenge []byte) (bool, []byte, error) {
	if c.scramCli == nil {
		return false, nil, errors.New("unexpected PLAIN auth step request")
	}

	if !c.scramCli.Step(challenge) {
		if err := c.scramCli.Err(); err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}

	return false, c.scramCli.Out(), nil
}
