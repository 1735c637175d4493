package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunKeygen(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"fhegate", "keygen"}, &out, &errBuf)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "public_key:")
	assert.Contains(t, out.String(), "private_key:")
}

func TestRunHelp(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"fhegate", "help"}, &out, &errBuf)
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"fhegate", "bogus"}, &out, &errBuf)
	assert.Equal(t, 2, code)
	assert.Contains(t, errBuf.String(), "unknown command")
}

func TestServeRejectsMissingProfile(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := Run([]string{"fhegate", "serve", "-profile", "/does/not/exist.yaml"}, &out, &errBuf)
	assert.Equal(t, 1, code)
	assert.Contains(t, errBuf.String(), "profile")
}
