// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMnemonicWordCount(t *testing.T) {
	m, err := NewMnemonic(nil)
	require.NoError(t, err)
	require.Len(t, strings.Fields(m), MnemonicWords)

	_, err = SeedFromMnemonic(m)
	require.NoError(t, err)
}

func TestNewMnemonicInjectedEntropy(t *testing.T) {
	// All-zero entropy has a known BIP-39 encoding.
	m, err := NewMnemonic(bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)

	words := strings.Fields(m)
	require.Len(t, words, MnemonicWords)
	for _, w := range words[:MnemonicWords-1] {
		require.Equal(t, "abandon", w)
	}
	require.Equal(t, "art", words[MnemonicWords-1])
}

func TestSeedFromMnemonicDeterminism(t *testing.T) {
	m, err := NewMnemonic(nil)
	require.NoError(t, err)

	s1, err := SeedFromMnemonic(m)
	require.NoError(t, err)
	s2, err := SeedFromMnemonic(m)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}

func TestSeedFromMnemonicRejectsWordCount(t *testing.T) {
	// A valid 12-word mnemonic is still rejected: 24 words are required.
	const twelve = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	_, err := SeedFromMnemonic(twelve)
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestSeedFromMnemonicRejectsBadChecksum(t *testing.T) {
	bad := strings.TrimSpace(strings.Repeat("abandon ", MnemonicWords))
	_, err := SeedFromMnemonic(bad)
	require.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = SeedFromMnemonic("")
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}
