package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzor/exec-monitor/internal/config"
)

func TestRootCmdRejectsInvalidConfigBeforeLoading(t *testing.T) {
	cfg, err := config.Parse()
	require.NoError(t, err)

	cmd := newRootCmd(cfg)
	cmd.SetArgs([]string{"--exclude", "/usr/bin/ls", "--probe-object", "/nonexistent"})
	cmd.SilenceErrors = true

	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRootCmdRejectsPositionalArgs(t *testing.T) {
	cfg, err := config.Parse()
	require.NoError(t, err)

	cmd := newRootCmd(cfg)
	cmd.SetArgs([]string{"extra"})
	cmd.SilenceErrors = true

	assert.Error(t, cmd.Execute())
}
