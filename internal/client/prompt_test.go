package client

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return &Prompter{in: bufio.NewReader(strings.NewReader(input)), out: &out}, &out
}

func TestPrompter_Line(t *testing.T) {
	p, out := newTestPrompter("  alice \nlast")

	got, err := p.Line("Username: ")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, "Username: ", out.String())

	got, err = p.Line("Name: ")
	require.NoError(t, err)
	assert.Equal(t, "last", got, "partial line before EOF is returned")

	_, err = p.Line("More: ")
	assert.Error(t, err)
}

func TestPrompter_Password(t *testing.T) {
	orig := readPassword
	defer func() { readPassword = orig }()

	readPassword = func(fd int) ([]byte, error) { return []byte("s3cret"), nil }
	p, out := newTestPrompter("")
	got, err := p.Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(fd int) ([]byte, error) { return nil, errors.New("not a terminal") }
	_, err = p.Password("Password: ")
	assert.Error(t, err)
}
