// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package crypto implements the key management core of the SDK: BIP-39
// mnemonic handling, deterministic secp256k1 keypair derivation, and the
// on-disk keystore.
package crypto

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/katzenpost/hpqc/rand"
	"github.com/tyler-smith/go-bip39"
)

const (
	// MnemonicWords is the number of words in a generated mnemonic.
	MnemonicWords = 24

	// 24 words corresponds to 256 bits of entropy.
	entropyBytes = 32
)

// ErrInvalidMnemonic is returned for a mnemonic with the wrong word count or
// a bad checksum.
var ErrInvalidMnemonic = errors.New("crypto: invalid mnemonic")

// NewMnemonic generates a fresh 24-word BIP-39 mnemonic. Entropy is read
// from rng; passing nil selects the system CSPRNG.
func NewMnemonic(rng io.Reader) (string, error) {
	if rng == nil {
		rng = rand.Reader
	}
	entropy := make([]byte, entropyBytes)
	if _, err := io.ReadFull(rng, entropy); err != nil {
		return "", fmt.Errorf("crypto: failed to read mnemonic entropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("crypto: failed to generate mnemonic: %v", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic validates the mnemonic and derives its BIP-39 seed using
// an empty passphrase. The same mnemonic always yields the same seed.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	if got := len(strings.Fields(mnemonic)); got != MnemonicWords {
		return nil, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidMnemonic, MnemonicWords, got)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, ""), nil
}
