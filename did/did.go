// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package did resolves decentralized identifiers for Rubix keypairs.
//
// A DID is requested from the node for a public key, registered exactly once
// (registration involves answering a signing challenge), and then persisted
// next to the keypair so later resolves never touch the network.
package did

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/ipfs/go-cid"
	"gopkg.in/op/go-logging.v1"

	"github.com/rubixchain/rubix-sdk-go/client"
	"github.com/rubixchain/rubix-sdk-go/crypto"
	"github.com/rubixchain/rubix-sdk-go/log"
)

// SignatureMode selects the secp256k1 signature scheme on the node side.
const SignatureMode = 4

// ErrRegistration is returned when the node rejects DID creation or
// registration. It is never retried here; retry policy belongs to callers.
var ErrRegistration = errors.New("did: registration rejected by node")

// Validate reports whether s is a well-formed Rubix DID (a CIDv1).
func Validate(s string) bool {
	c, err := cid.Decode(s)
	if err != nil {
		return false
	}
	return c.Version() == 1
}

// ValidateAssetAddress reports whether s is a well-formed asset address
// (smart contract or NFT token, a CIDv0).
func ValidateAssetAddress(s string) bool {
	c, err := cid.Decode(s)
	if err != nil {
		return false
	}
	return c.Version() == 0
}

// Resolver obtains and registers DIDs for stored keypairs.
type Resolver struct {
	store  *crypto.KeyStore
	client *client.Client
	log    *logging.Logger
}

// NewResolver constructs a Resolver bound to a keystore and a node client.
func NewResolver(store *crypto.KeyStore, c *client.Client, logBackend *log.Backend) *Resolver {
	r := &Resolver{
		store:  store,
		client: c,
	}
	if logBackend != nil {
		r.log = logBackend.GetLogger("did")
	} else {
		backend, _ := log.New("", "ERROR", true)
		r.log = backend.GetLogger("did")
	}
	return r
}

// Resolve returns the DID for the keypair stored under alias. The first call
// for a keypair requests a DID from the node, registers it, and persists it;
// every later call returns the stored DID without any network traffic, so
// resolving twice never registers twice.
func (r *Resolver) Resolve(ctx context.Context, alias string, kp *crypto.Keypair) (string, error) {
	stored, err := r.store.DID(alias)
	if err != nil {
		return "", err
	}
	if stored != "" {
		return stored, nil
	}

	userDID, err := r.requestDID(ctx, kp)
	if err != nil {
		return "", err
	}
	if err := r.register(ctx, userDID, kp); err != nil {
		return "", err
	}
	if err := r.store.StoreDID(alias, userDID); err != nil {
		return "", err
	}
	r.log.Noticef("registered DID %v for alias '%v'", userDID, alias)
	return userDID, nil
}

// VerifySignature asks the node whether signature is a valid signature of
// message by the holder of userDID. This is the node's online verification
// service, local verification needs the signer's public key instead.
func (r *Resolver) VerifySignature(ctx context.Context, userDID string, message, signature []byte) (bool, error) {
	var resp client.Response
	params := url.Values{
		"signer_did": []string{userDID},
		"signed_msg": []string{string(message)},
		"signature":  []string{hex.EncodeToString(signature)},
	}
	if err := r.client.Get(ctx, "/api/verify-signature", params, &resp); err != nil {
		return false, err
	}
	return resp.Status, nil
}

func (r *Resolver) requestDID(ctx context.Context, kp *crypto.Keypair) (string, error) {
	var resp struct {
		client.Response
		DID string `json:"did"`
	}
	body := map[string]string{"public_key": kp.PublicKeyHex()}
	if err := r.client.PostJSON(ctx, "/api/request-did-for-pubkey", body, &resp); err != nil {
		return "", err
	}
	if !resp.Status && resp.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrRegistration, resp.Message)
	}
	if resp.DID == "" {
		return "", fmt.Errorf("%w: node returned no DID", ErrRegistration)
	}
	return resp.DID, nil
}

func (r *Resolver) register(ctx context.Context, userDID string, kp *crypto.Keypair) error {
	var resp client.Response
	if err := r.client.PostJSON(ctx, "/api/register-did", map[string]string{"did": userDID}, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("%w: %s", ErrRegistration, resp.Message)
	}

	// Registration hands back signing challenges until the node is
	// satisfied.
	for {
		ch, ok := resp.Challenge()
		if !ok {
			break
		}
		hash, err := base64.StdEncoding.DecodeString(ch.Hash)
		if err != nil {
			return fmt.Errorf("%w: malformed challenge hash: %v", ErrRegistration, err)
		}
		if err := r.client.PostJSON(ctx, "/api/signature-response", ChallengeReply(ch.ID, kp.Sign(hash)), &resp); err != nil {
			return err
		}
		if !resp.Status {
			return fmt.Errorf("%w: %s", ErrRegistration, resp.Message)
		}
	}
	return nil
}

// ChallengeReply builds the node's signature-response body for a signing
// challenge. The signature travels as an array of byte values, not base64.
func ChallengeReply(id string, sig []byte) map[string]any {
	ints := make([]int, len(sig))
	for i, b := range sig {
		ints[i] = int(b)
	}
	return map[string]any{
		"id": id,
		"Signature": map[string]any{
			"Signature": ints,
		},
		"mode": SignatureMode,
	}
}
