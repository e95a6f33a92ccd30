// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMnemonic(t *testing.T) string {
	t.Helper()
	m, err := NewMnemonic(bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)
	return m
}

func TestKeypairDerivationIsDeterministic(t *testing.T) {
	m := testMnemonic(t)

	k1, err := KeypairFromMnemonic(m)
	require.NoError(t, err)
	k2, err := KeypairFromMnemonic(m)
	require.NoError(t, err)

	require.True(t, k1.Equal(k2))
	require.Equal(t, k1.PublicKeyHex(), k2.PublicKeyHex())
}

func TestKeypairPublicKeyIsCompressed(t *testing.T) {
	kp, err := KeypairFromMnemonic(testMnemonic(t))
	require.NoError(t, err)

	pub := kp.PublicKeyBytes()
	require.Len(t, pub, 33)
	require.Contains(t, []byte{0x02, 0x03}, pub[0])
	require.Len(t, kp.PublicKeyHex(), 66)
}

func TestSignIsDeterministic(t *testing.T) {
	kp, err := KeypairFromMnemonic(testMnemonic(t))
	require.NoError(t, err)

	msg := []byte("Test RBT Transfer")
	sig1 := kp.Sign(msg)
	sig2 := kp.Sign(msg)
	require.NotEmpty(t, sig1)
	require.Equal(t, sig1, sig2)

	require.True(t, kp.Verify(msg, sig1))
	require.False(t, kp.Verify([]byte("tampered"), sig1))
	require.False(t, kp.Verify(msg, []byte("not a DER signature")))
}

func TestDistinctSeedsYieldDistinctKeys(t *testing.T) {
	m1, err := NewMnemonic(nil)
	require.NoError(t, err)
	m2, err := NewMnemonic(nil)
	require.NoError(t, err)
	require.NotEqual(t, m1, m2)

	k1, err := KeypairFromMnemonic(m1)
	require.NoError(t, err)
	k2, err := KeypairFromMnemonic(m2)
	require.NoError(t, err)
	require.False(t, k1.Equal(k2))
}
