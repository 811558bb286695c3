package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReturnsExitCode2OnUnknownFlag(t *testing.T) {
	code := run([]string{"--this-flag-does-not-exist"})
	assert.Equal(t, 2, code)
}

func TestRunReturnsExitCode2OnBadFlagValue(t *testing.T) {
	code := run([]string{"--max-speed", "notanumber"})
	assert.Equal(t, 2, code)
}

func TestRunReturnsExitCode0OnVersion(t *testing.T) {
	code := run([]string{"--version"})
	assert.Equal(t, 0, code)
}
