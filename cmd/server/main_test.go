package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerorag/internal/config"
	"zerorag/internal/logging"
)

func TestOpenPrimaryBackendFallsBackToMemoryWithoutQdrantURL(t *testing.T) {
	cfg := config.Default()
	cfg.Vector.QdrantURL = ""
	logger := logging.New(logging.LevelError)

	backend, err := openPrimaryBackend(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestOpenPrimaryBackendRejectsMalformedQdrantURL(t *testing.T) {
	cfg := config.Default()
	cfg.Vector.QdrantURL = "not-a-host-port"
	logger := logging.New(logging.LevelError)

	_, err := openPrimaryBackend(cfg, logger)
	assert.Error(t, err)
}
