// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package signer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rubixchain/rubix-sdk-go/client"
	"github.com/rubixchain/rubix-sdk-go/crypto"
	"github.com/rubixchain/rubix-sdk-go/internal/txlog"
)

const testDID = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

// testNode fakes the Rubix node endpoints a Signer touches.
type testNode struct {
	t *testing.T

	registrations atomic.Int64
	transfers     atomic.Int64
	signatures    atomic.Int64

	rejectTransfer atomic.Bool
	transferHash   []byte
	lastTransfer   atomic.Pointer[TransferRequest]
	lastSignature  atomic.Pointer[[]byte]
	lastSignedHash atomic.Pointer[[]byte]
}

func newTestNode(t *testing.T) (*testNode, *httptest.Server) {
	n := &testNode{t: t, transferHash: []byte("transfer challenge")}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/request-did-for-pubkey", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": true, "did": testDID})
	})
	mux.HandleFunc("/api/register-did", func(w http.ResponseWriter, r *http.Request) {
		n.registrations.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"result": map[string]string{
				"id":   "reg-1",
				"hash": base64.StdEncoding.EncodeToString([]byte("registration challenge")),
			},
		})
	})
	mux.HandleFunc("/api/initiate-rbt-transfer", func(w http.ResponseWriter, r *http.Request) {
		n.transfers.Add(1)
		var req TransferRequest
		require.NoError(n.t, json.NewDecoder(r.Body).Decode(&req))
		n.lastTransfer.Store(&req)
		if n.rejectTransfer.Load() {
			json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "insufficient balance"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"result": map[string]string{
				"id":   "tx-1",
				"hash": base64.StdEncoding.EncodeToString(n.transferHash),
			},
		})
	})
	mux.HandleFunc("/api/signature-response", func(w http.ResponseWriter, r *http.Request) {
		n.signatures.Add(1)
		var body struct {
			ID        string `json:"id"`
			Signature struct {
				Signature []int `json:"Signature"`
			} `json:"Signature"`
			Mode int `json:"mode"`
		}
		require.NoError(n.t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(n.t, 4, body.Mode)
		sig := make([]byte, len(body.Signature.Signature))
		for i, v := range body.Signature.Signature {
			sig[i] = byte(v)
		}
		if body.ID == "tx-1" {
			n.lastSignature.Store(&sig)
			h := append([]byte(nil), n.transferHash...)
			n.lastSignedHash.Store(&h)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": true, "result": "Transfer finished"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return n, srv
}

func newTestSigner(t *testing.T, dataDir string, node *httptest.Server, history *txlog.Log) *Signer {
	ks, err := crypto.NewKeyStore(dataDir, "mypassword", nil, nil)
	require.NoError(t, err)
	c, err := client.New(&client.Config{NodeURL: node.URL})
	require.NoError(t, err)

	s, err := New(context.Background(), &Config{
		Alias:    "nick",
		KeyStore: ks,
		Client:   c,
		History:  history,
	})
	require.NoError(t, err)
	return s
}

func TestNewCreatesIdentity(t *testing.T) {
	_, srv := newTestNode(t)
	dataDir := t.TempDir()

	s := newTestSigner(t, dataDir, srv, nil)

	require.Equal(t, testDID, s.DID())
	require.Len(t, strings.Fields(s.GeneratedMnemonic()), 24)

	// The alias directory materializes with the key files.
	_, err := os.Stat(filepath.Join(dataDir, "nick", "privKey.pem"))
	require.NoError(t, err)

	sp, err := s.SignTransfer("did:rubix:abc", 0.001, "Test RBT Transfer")
	require.NoError(t, err)
	require.NotEmpty(t, sp.Signature)
	require.Contains(t, string(sp.Payload), `"tokenCOunt":0.001`)
	require.Equal(t, testDID, sp.Request.Sender)
}

func TestNewLoadsExistingKeys(t *testing.T) {
	node, srv := newTestNode(t)
	dataDir := t.TempDir()

	s1 := newTestSigner(t, dataDir, srv, nil)
	s2 := newTestSigner(t, dataDir, srv, nil)

	require.Equal(t, s1.DID(), s2.DID())
	require.Empty(t, s2.GeneratedMnemonic(), "a loaded keypair has no fresh mnemonic")
	require.Equal(t, int64(1), node.registrations.Load(), "the DID must register once")
}

func TestSignTransferValidation(t *testing.T) {
	_, srv := newTestNode(t)
	s := newTestSigner(t, t.TempDir(), srv, nil)

	_, err := s.SignTransfer("did:rubix:abc", 0, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.SignTransfer("did:rubix:abc", -1.5, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.SignTransfer("", 0.001, "")
	require.ErrorIs(t, err, ErrInvalidRecipient)
	_, err = s.SignTransfer("   ", 0.001, "")
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestSignTransferIsDeterministic(t *testing.T) {
	_, srv := newTestNode(t)
	s := newTestSigner(t, t.TempDir(), srv, nil)

	sp1, err := s.SignTransfer("did:rubix:abc", 0.001, "Test RBT Transfer")
	require.NoError(t, err)
	sp2, err := s.SignTransfer("did:rubix:abc", 0.001, "Test RBT Transfer")
	require.NoError(t, err)

	require.True(t, bytes.Equal(sp1.Payload, sp2.Payload))
	require.True(t, bytes.Equal(sp1.Signature, sp2.Signature))

	sp3, err := s.SignTransfer("did:rubix:abc", 0.002, "Test RBT Transfer")
	require.NoError(t, err)
	require.False(t, bytes.Equal(sp1.Signature, sp3.Signature))
}

func TestTransferRBT(t *testing.T) {
	node, srv := newTestNode(t)
	dataDir := t.TempDir()

	history, err := txlog.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	s := newTestSigner(t, dataDir, srv, history)

	res, err := s.TransferRBT(context.Background(), "did:rubix:abc", 0.001, "Test RBT Transfer")
	require.NoError(t, err)
	require.True(t, res.Status)

	require.Equal(t, int64(1), node.transfers.Load())
	sent := node.lastTransfer.Load()
	require.Equal(t, testDID, sent.Sender)
	require.Equal(t, 0.001, sent.TokenCount)
	require.Equal(t, 2, sent.Type)

	// The challenge signature must verify against the stored keypair.
	ks, err := crypto.NewKeyStore(dataDir, "mypassword", nil, nil)
	require.NoError(t, err)
	kp, err := ks.Load("nick")
	require.NoError(t, err)
	require.True(t, kp.Verify(*node.lastSignedHash.Load(), *node.lastSignature.Load()))

	records, err := history.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "rbt", records[0].Kind)
	require.True(t, records[0].Status)
}

func TestTransferRBTRejection(t *testing.T) {
	node, srv := newTestNode(t)
	node.rejectTransfer.Store(true)

	history, err := txlog.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	s := newTestSigner(t, t.TempDir(), srv, history)

	// A node rejection is a Result, not an error.
	res, err := s.TransferRBT(context.Background(), "did:rubix:abc", 0.001, "")
	require.NoError(t, err)
	require.False(t, res.Status)
	require.Equal(t, "insufficient balance", res.Message)
	require.Equal(t, int64(1), node.signatures.Load(), "only the registration challenge is signed")

	records, err := history.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, records[0].Status)
}
