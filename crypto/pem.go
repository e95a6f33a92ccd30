// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/katzenpost/hpqc/rand"
	"golang.org/x/crypto/pbkdf2"
)

// On-disk private keys are sealed with AES-256-GCM under a key derived from
// the keystore passphrase via PBKDF2-HMAC-SHA256. The PEM payload layout is
// salt || nonce || ciphertext.
const (
	publicKeyPEMType  = "PUBLIC KEY"
	privateKeyPEMType = "ENCRYPTED PRIVATE KEY"

	kdfIterations = 200000
	kdfKeyLen     = 32
	saltLen       = 16
	nonceLen      = 12

	keyFileMode = 0600
)

func writePublicKeyPEM(f string, pub []byte) error {
	blk := &pem.Block{
		Type:  publicKeyPEMType,
		Bytes: pub,
	}
	return os.WriteFile(f, pem.EncodeToMemory(blk), keyFileMode)
}

func readPublicKeyPEM(f string) ([]byte, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	blk, _ := pem.Decode(b)
	if blk == nil || blk.Type != publicKeyPEMType {
		return nil, fmt.Errorf("%w: %s is not a public key PEM", ErrKeyStorage, f)
	}
	if len(blk.Bytes) != 33 || (blk.Bytes[0] != 0x02 && blk.Bytes[0] != 0x03) {
		return nil, fmt.Errorf("%w: %s does not hold a compressed secp256k1 key", ErrKeyStorage, f)
	}
	return blk.Bytes, nil
}

func writePrivateKeyPEM(f string, priv []byte, passphrase string) error {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}

	aead, err := newKeyAEAD(passphrase, salt)
	if err != nil {
		return err
	}
	sealed := aead.Seal(nil, nonce, priv, nil)

	payload := make([]byte, 0, saltLen+nonceLen+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	blk := &pem.Block{
		Type:  privateKeyPEMType,
		Bytes: payload,
	}
	return os.WriteFile(f, pem.EncodeToMemory(blk), keyFileMode)
}

func readPrivateKeyPEM(f string, passphrase string) ([]byte, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	blk, _ := pem.Decode(b)
	if blk == nil || blk.Type != privateKeyPEMType {
		return nil, fmt.Errorf("%w: %s is not an encrypted private key PEM", ErrKeyStorage, f)
	}
	// Minimum: salt, nonce and the GCM tag of an empty plaintext.
	if len(blk.Bytes) < saltLen+nonceLen+16 {
		return nil, fmt.Errorf("%w: %s is truncated", ErrKeyStorage, f)
	}

	salt := blk.Bytes[:saltLen]
	nonce := blk.Bytes[saltLen : saltLen+nonceLen]
	sealed := blk.Bytes[saltLen+nonceLen:]

	aead, err := newKeyAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}
	priv, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt %s (wrong passphrase or corrupt file)", ErrKeyStorage, f)
	}
	if len(priv) != 32 {
		return nil, fmt.Errorf("%w: %s does not hold a 32-byte private key", ErrKeyStorage, f)
	}
	return priv, nil
}

func newKeyAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, kdfKeyLen, sha256.New)
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
