// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/katzenpost/hpqc/rand"
	"gopkg.in/op/go-logging.v1"

	"github.com/rubixchain/rubix-sdk-go/log"
)

const (
	pubKeyFile  = "pubKey.pem"
	privKeyFile = "privKey.pem"
	didFile     = "did"

	dirMode = 0700
)

var (
	// ErrKeyStorage is returned when persisted key material is unreadable
	// or corrupt.
	ErrKeyStorage = errors.New("keystore: corrupt or unreadable key material")

	// ErrNoSuchAlias is returned when loading an alias that has never been
	// created.
	ErrNoSuchAlias = errors.New("keystore: no such alias")

	// ErrInvalidAlias is returned for an empty alias or one that is not a
	// plain file name.
	ErrInvalidAlias = errors.New("keystore: invalid alias")
)

// KeyStore persists one keypair per alias under a data directory:
//
//	<dataDir>/<alias>/pubKey.pem
//	<dataDir>/<alias>/privKey.pem
//	<dataDir>/<alias>/did        (written once the DID is registered)
//
// The private key file is encrypted with the keystore passphrase.
type KeyStore struct {
	dir        string
	passphrase string
	rng        io.Reader
	log        *logging.Logger
}

// NewKeyStore opens (creating if necessary) a keystore rooted at dir. The
// passphrase encrypts private key files at rest. rng is the entropy source
// used for mnemonic generation; nil selects the system CSPRNG.
func NewKeyStore(dir, passphrase string, rng io.Reader, logBackend *log.Backend) (*KeyStore, error) {
	if dir == "" {
		return nil, errors.New("keystore: data directory must not be empty")
	}
	if rng == nil {
		rng = rand.Reader
	}

	// Ensure the data directory exists with sane permissions.
	if fi, err := os.Lstat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore: failed to stat() data directory: %w", err)
		}
		if err = os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("keystore: failed to create data directory: %w", err)
		}
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("keystore: data directory '%v' is not a directory", dir)
	}

	ks := &KeyStore{
		dir:        dir,
		passphrase: passphrase,
		rng:        rng,
	}
	if logBackend != nil {
		ks.log = logBackend.GetLogger("keystore")
	} else {
		backend, _ := log.New("", "ERROR", true)
		ks.log = backend.GetLogger("keystore")
	}
	return ks, nil
}

// LoadOrCreate returns the keypair stored under alias, creating it first if
// absent. When a keypair for the alias already exists on disk the stored key
// always wins and any supplied mnemonic is ignored; recovering from a
// mnemonic into an alias requires a fresh alias (or deleting the stored one).
//
// The returned mnemonic is non-empty only when a keypair was newly created,
// so the caller can display it exactly once. Mnemonics are never persisted.
func (ks *KeyStore) LoadOrCreate(alias, mnemonic string) (*Keypair, string, error) {
	if err := validateAlias(alias); err != nil {
		return nil, "", err
	}

	aliasDir := filepath.Join(ks.dir, alias)
	if _, err := os.Lstat(aliasDir); err == nil {
		if mnemonic != "" {
			ks.log.Warningf("alias '%v' already exists, ignoring supplied mnemonic", alias)
		}
		kp, err := ks.load(aliasDir)
		return kp, "", err
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("keystore: failed to stat() alias directory: %w", err)
	}

	created := mnemonic == ""
	if created {
		var err error
		if mnemonic, err = NewMnemonic(ks.rng); err != nil {
			return nil, "", err
		}
	}
	kp, err := KeypairFromMnemonic(mnemonic)
	if err != nil {
		return nil, "", err
	}

	if err := ks.persist(aliasDir, kp); err != nil {
		if errors.Is(err, errLostRace) {
			// Another process created this alias first. Its keys win.
			ks.log.Noticef("lost creation race for alias '%v', loading persisted keys", alias)
			kp, err := ks.load(aliasDir)
			return kp, "", err
		}
		return nil, "", err
	}

	ks.log.Noticef("created keypair for alias '%v'", alias)
	if !created {
		mnemonic = ""
	}
	return kp, mnemonic, nil
}

// Load returns the keypair stored under alias.
func (ks *KeyStore) Load(alias string) (*Keypair, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}
	aliasDir := filepath.Join(ks.dir, alias)
	if _, err := os.Lstat(aliasDir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchAlias, alias)
		}
		return nil, fmt.Errorf("keystore: failed to stat() alias directory: %w", err)
	}
	return ks.load(aliasDir)
}

// DID returns the registered DID stored for alias, or "" when no DID has
// been stored yet.
func (ks *KeyStore) DID(alias string) (string, error) {
	if err := validateAlias(alias); err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(ks.dir, alias, didFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("keystore: failed to read DID for alias '%v': %w", alias, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// StoreDID records the registered DID for alias. The DID for a keypair is
// immutable: overwriting an existing, different DID is refused.
func (ks *KeyStore) StoreDID(alias, did string) error {
	if err := validateAlias(alias); err != nil {
		return err
	}
	if did == "" {
		return errors.New("keystore: DID must not be empty")
	}
	existing, err := ks.DID(alias)
	if err != nil {
		return err
	}
	if existing != "" && existing != did {
		return fmt.Errorf("keystore: alias '%v' already bound to DID %v", alias, existing)
	}

	aliasDir := filepath.Join(ks.dir, alias)
	tmp := filepath.Join(aliasDir, didFile+".tmp."+ks.tempSuffix())
	if err := os.WriteFile(tmp, []byte(did+"\n"), keyFileMode); err != nil {
		return fmt.Errorf("keystore: failed to write DID for alias '%v': %w", alias, err)
	}
	if err := os.Rename(tmp, filepath.Join(aliasDir, didFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("keystore: failed to persist DID for alias '%v': %w", alias, err)
	}
	return nil
}

var errLostRace = errors.New("keystore: alias created concurrently")

// persist writes the keypair into a temporary directory and renames it into
// place. The rename is atomic, so a crash never leaves a partially written
// alias, and exactly one of several concurrent creators wins.
func (ks *KeyStore) persist(aliasDir string, kp *Keypair) error {
	tmp := aliasDir + ".tmp." + ks.tempSuffix()
	if err := os.Mkdir(tmp, dirMode); err != nil {
		return fmt.Errorf("keystore: failed to create temp key directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writePublicKeyPEM(filepath.Join(tmp, pubKeyFile), kp.PublicKeyBytes()); err != nil {
		return fmt.Errorf("keystore: failed to write public key: %w", err)
	}
	if err := writePrivateKeyPEM(filepath.Join(tmp, privKeyFile), kp.privateBytes(), ks.passphrase); err != nil {
		return fmt.Errorf("keystore: failed to write private key: %w", err)
	}

	if err := os.Rename(tmp, aliasDir); err != nil {
		if _, statErr := os.Lstat(aliasDir); statErr == nil {
			return errLostRace
		}
		return fmt.Errorf("keystore: failed to persist keys: %w", err)
	}
	return nil
}

func (ks *KeyStore) load(aliasDir string) (*Keypair, error) {
	pub, err := readPublicKeyPEM(filepath.Join(aliasDir, pubKeyFile))
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	priv, err := readPrivateKeyPEM(filepath.Join(aliasDir, privKeyFile), ks.passphrase)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	kp, err := keypairFromPrivateBytes(priv)
	if err != nil {
		return nil, err
	}
	if kp.PublicKeyHex() != hex.EncodeToString(pub) {
		return nil, fmt.Errorf("%w: public key file does not match private key", ErrKeyStorage)
	}
	return kp, nil
}

func (ks *KeyStore) tempSuffix() string {
	var b [8]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// wrapStorageErr folds plain read failures into ErrKeyStorage while leaving
// permission errors distinguishable via errors.Is(err, fs.ErrPermission).
func wrapStorageErr(err error) error {
	if errors.Is(err, ErrKeyStorage) || errors.Is(err, os.ErrPermission) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrKeyStorage, err)
}

func validateAlias(alias string) error {
	if alias == "" || alias != filepath.Base(alias) || strings.HasPrefix(alias, ".") {
		return fmt.Errorf("%w: '%v'", ErrInvalidAlias, alias)
	}
	return nil
}
