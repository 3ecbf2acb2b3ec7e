package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbscraper/pkg/config"
	"fbscraper/pkg/errors"
)

func TestChangedFlagsOnlyHoldsSetFlags(t *testing.T) {
	require.NoError(t, dumpCmd.ParseFlags([]string{"--size", "500", "--timer", "0.5", "--output", "out"}))

	flags := changedFlags(dumpCmd)
	assert.Equal(t, map[string]interface{}{"size": 500, "timer": 0.5, "output": "out"}, flags)

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 500, cfg.Crawl.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.RequestDelay)
	assert.Equal(t, "out", cfg.Output.BaseDirectory)
	assert.Equal(t, 0, cfg.Crawl.Offset)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"dump"}, {"parse"}, {"list"},
		{"auth", "login"}, {"auth", "logout"}, {"auth", "list"}, {"auth", "show"},
		{"config", "init"}, {"config", "show"}, {"config", "validate"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(fmt.Errorf("unknown flag")))
	assert.Equal(t, 1, exitCode(errors.UnknownConversation("42")))
	assert.Equal(t, 1, exitCode(errors.Protocol("bad payload")))
	assert.Equal(t, 2, exitCode(fmt.Errorf("parse: %w", errors.Download("https://cdn/1", fmt.Errorf("status 403")))))
}
