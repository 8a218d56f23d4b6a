package gocbsessx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaslClientPlainPayload(t *testing.T) {
	cli, err := newSaslClient("dave", "asecretdontlook", []AuthMechanism{PlainAuthMechanism})
	require.NoError(t, err)

	assert.Equal(t, PlainAuthMechanism, cli.Name())

	payload, err := cli.Start()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00dave\x00asecretdontlook"), payload)

	// PLAIN is a single round; a challenge is a protocol violation
	_, _, err = cli.Step([]byte("challenge"))
	assert.Error(t, err)
}

func TestSaslClientMechPreference(t *testing.T) {
	cli, err := newSaslClient("dave", "pass", defaultSaslMechs)
	require.NoError(t, err)

	// the first preference is attempted unambiguously
	assert.Equal(t, ScramSha512AuthMechanism, cli.Name())
}

func TestSaslClientScramProducesInitialPayload(t *testing.T) {
	cli, err := newSaslClient("dave", "pass", []AuthMechanism{ScramSha256AuthMechanism})
	require.NoError(t, err)

	payload, err := cli.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}

func TestSaslClientRejectsEmptyMechList(t *testing.T) {
	_, err := newSaslClient("dave", "pass", nil)
	assert.Error(t, err)
}

func TestSaslClientRejectsUnknownMech(t *testing.T) {
	_, err := newSaslClient("dave", "pass", []AuthMechanism{"CRAM-MD5"})
	assert.Error(t, err)
}
