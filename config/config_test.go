// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte(`DataDir = "/tmp/rubix-test"`))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:20000", cfg.Node.URL)
	require.Equal(t, 300, cfg.Node.Timeout)
	require.Equal(t, 300*time.Second, cfg.Node.RequestTimeout())
	require.Equal(t, "NOTICE", cfg.Logging.Level)
	require.Equal(t, "/tmp/rubix-test", cfg.DataDir)
	require.NotEmpty(t, cfg.KeyPassphrase)
}

func TestLoadFull(t *testing.T) {
	b := []byte(`
DataDir = "/tmp/rubix-test"
KeyPassphrase = "hunter2"

[Node]
URL = "https://node.example.com:20000/"
Timeout = 30
APIKey = "abc123"

[Logging]
Level = "debug"
`)
	cfg, err := Load(b)
	require.NoError(t, err)
	// Trailing slash is stripped, level forced uppercase.
	require.Equal(t, "https://node.example.com:20000", cfg.Node.URL)
	require.Equal(t, "abc123", cfg.Node.APIKey)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, "hunter2", cfg.KeyPassphrase)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load([]byte(`
DataDir = "/tmp/rubix-test"
NodeUrl = "http://localhost:20000"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undecoded")
}

func TestLoadRejectsBadLevel(t *testing.T) {
	_, err := Load([]byte(`
DataDir = "/tmp/rubix-test"
[Logging]
Level = "LOUD"
`))
	require.Error(t, err)
}

func TestLoadRejectsNegativeTimeout(t *testing.T) {
	_, err := Load([]byte(`
DataDir = "/tmp/rubix-test"
[Node]
Timeout = -1
`))
	require.Error(t, err)
}
