// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Keypair is a secp256k1 signing keypair. The private key never leaves this
// package except through the encrypted keystore files.
type Keypair struct {
	priv *btcec.PrivateKey
	pub  *btcec.PublicKey
}

// KeypairFromSeed deterministically derives a keypair from a BIP-39 seed:
// BIP-32 master key, then the non-hardened child at index 0. The same seed
// always yields the same keypair.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to derive master key: %v", err)
	}
	child, err := master.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to derive child key: %v", err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to extract private key: %v", err)
	}
	return &Keypair{priv: priv, pub: priv.PubKey()}, nil
}

// KeypairFromMnemonic derives a keypair from a BIP-39 mnemonic.
func KeypairFromMnemonic(mnemonic string) (*Keypair, error) {
	seed, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return KeypairFromSeed(seed)
}

// keypairFromPrivateBytes reconstructs a keypair from a serialized 32-byte
// private key, as stored by the keystore.
func keypairFromPrivateBytes(b []byte) (*Keypair, error) {
	if len(b) != 32 {
		return nil, errors.New("crypto: private key must be 32 bytes")
	}
	priv, pub := btcec.PrivKeyFromBytes(b)
	return &Keypair{priv: priv, pub: pub}, nil
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *Keypair) PublicKeyBytes() []byte {
	return k.pub.SerializeCompressed()
}

// PublicKeyHex returns the compressed public key in hexadecimal form, the
// representation the node expects.
func (k *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKeyBytes())
}

func (k *Keypair) privateBytes() []byte {
	return k.priv.Serialize()
}

// Sign signs message with deterministic ECDSA (RFC 6979) over its SHA-256
// digest and returns a DER encoded signature. Identical message and key
// always produce an identical signature.
func (k *Keypair) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	return ecdsa.Sign(k.priv, digest[:]).Serialize()
}

// Verify reports whether signature is a valid DER encoded signature of
// message under this keypair's public key.
func (k *Keypair) Verify(message, signature []byte) bool {
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(message)
	return sig.Verify(digest[:], k.pub)
}

// Equal reports whether two keypairs hold the same key material.
func (k *Keypair) Equal(other *Keypair) bool {
	if other == nil {
		return false
	}
	return k.priv.Key.Equals(&other.priv.Key)
}
