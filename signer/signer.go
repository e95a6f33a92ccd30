// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package signer builds, signs and submits Rubix transactions.
//
// A Signer binds an alias in the keystore to a resolved DID and owns the
// Built and Signed stages of a transfer; submission goes through the node
// client, which reports the node's verdict back as a Result. The node answers
// each submission with signing challenges until its quorum is satisfied.
package signer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/op/go-logging.v1"

	"github.com/rubixchain/rubix-sdk-go/client"
	"github.com/rubixchain/rubix-sdk-go/crypto"
	"github.com/rubixchain/rubix-sdk-go/did"
	"github.com/rubixchain/rubix-sdk-go/internal/txlog"
	"github.com/rubixchain/rubix-sdk-go/log"
)

// quorumType selects how the node assembles a quorum for a transaction.
const quorumType = 2

var (
	// ErrInvalidAmount is returned when a transfer amount is not positive.
	ErrInvalidAmount = errors.New("signer: amount must be greater than zero")

	// ErrInvalidRecipient is returned when a transfer names no receiver.
	ErrInvalidRecipient = errors.New("signer: receiver must not be empty")
)

// Config is the signer configuration.
type Config struct {
	// Alias names the keypair in the keystore.
	Alias string

	// Mnemonic optionally recovers an existing keypair. It is ignored when
	// the alias already has stored keys.
	Mnemonic string

	// KeyStore holds the keypairs.
	KeyStore *crypto.KeyStore

	// Client is the node client used for DID resolution and submission.
	Client *client.Client

	// History, if not nil, records every submitted transfer.
	History *txlog.Log

	// LogBackend is the logging backend to use. If nil, logging is disabled.
	LogBackend *log.Backend
}

func (cfg *Config) validate() error {
	if cfg.Alias == "" {
		return errors.New("signer: no alias configured")
	}
	if cfg.KeyStore == nil {
		return errors.New("signer: no keystore configured")
	}
	if cfg.Client == nil {
		return errors.New("signer: no node client configured")
	}
	return nil
}

// Signer signs and submits transactions for one alias.
type Signer struct {
	userDID string
	keypair *crypto.Keypair
	client  *client.Client
	history *txlog.Log
	log     *logging.Logger

	generatedMnemonic string
}

// New loads or creates the keypair for cfg.Alias, resolves its DID against
// the node, and returns a Signer bound to that identity. When a fresh keypair
// was generated the new mnemonic is available from GeneratedMnemonic until
// the Signer is discarded; it is never written to disk.
func New(ctx context.Context, cfg *Config) (*Signer, error) {
	if cfg == nil {
		return nil, errors.New("signer: nil config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Signer{
		client:  cfg.Client,
		history: cfg.History,
	}
	if cfg.LogBackend != nil {
		s.log = cfg.LogBackend.GetLogger("signer")
	} else {
		backend, _ := log.New("", "ERROR", true)
		s.log = backend.GetLogger("signer")
	}

	kp, mnemonic, err := cfg.KeyStore.LoadOrCreate(cfg.Alias, cfg.Mnemonic)
	if err != nil {
		return nil, err
	}
	s.keypair = kp
	s.generatedMnemonic = mnemonic

	resolver := did.NewResolver(cfg.KeyStore, cfg.Client, cfg.LogBackend)
	userDID, err := resolver.Resolve(ctx, cfg.Alias, kp)
	if err != nil {
		return nil, err
	}
	s.userDID = userDID
	return s, nil
}

// DID returns the resolved DID this Signer signs as.
func (s *Signer) DID() string {
	return s.userDID
}

// GeneratedMnemonic returns the mnemonic generated for a newly created
// keypair, or "" when the keypair was loaded or recovered. Callers are
// expected to show it to the user once for backup.
func (s *Signer) GeneratedMnemonic() string {
	return s.generatedMnemonic
}

// TransferRequest is the node's wire body for an RBT transfer. The field is
// spelled tokenCOunt on the wire; the node's API really is typoed that way.
type TransferRequest struct {
	Comment    string  `json:"comment"`
	Receiver   string  `json:"receiver"`
	Sender     string  `json:"sender"`
	TokenCount float64 `json:"tokenCOunt"`
	Type       int     `json:"type"`
}

// SignedPayload is a built and signed transfer, ready for submission.
type SignedPayload struct {
	Request *TransferRequest

	// Payload is the canonical JSON encoding of Request that Signature
	// covers.
	Payload   []byte
	Signature []byte
}

// SignTransfer validates and builds a transfer request and signs its
// canonical encoding. Signing is deterministic, identical inputs produce a
// byte-identical signature. It performs no network traffic.
func (s *Signer) SignTransfer(receiver string, amount float64, comment string) (*SignedPayload, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
	}
	if strings.TrimSpace(receiver) == "" {
		return nil, ErrInvalidRecipient
	}

	req := &TransferRequest{
		Comment:    comment,
		Receiver:   receiver,
		Sender:     s.userDID,
		TokenCount: amount,
		Type:       quorumType,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("signer: failed to encode transfer: %v", err)
	}
	return &SignedPayload{
		Request:   req,
		Payload:   payload,
		Signature: s.keypair.Sign(payload),
	}, nil
}

// Result is the node's verdict on a submitted transaction. Callers branch on
// Status and read Message on failure.
type Result struct {
	Status  bool
	Message string
}

// TransferRBT signs and submits an RBT transfer. A node rejection is not an
// error, it comes back as a Result with Status false; errors are reserved
// for invalid input and transport failures.
func (s *Signer) TransferRBT(ctx context.Context, receiver string, amount float64, comment string) (*Result, error) {
	sp, err := s.SignTransfer(receiver, amount, comment)
	if err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, "/api/initiate-rbt-transfer", sp.Request)
	if err != nil {
		return nil, err
	}
	s.record("rbt", receiver, amount, comment, res)
	return res, nil
}

// CreateFT creates a new fungible token class backed by locked RBT.
func (s *Signer) CreateFT(ctx context.Context, name string, supply int, rbtLockAmount int) (*Result, error) {
	if supply <= 0 || rbtLockAmount <= 0 {
		return nil, fmt.Errorf("%w: supply %v, lock %v", ErrInvalidAmount, supply, rbtLockAmount)
	}
	body := map[string]any{
		"did":                s.userDID,
		"ft_count":           supply,
		"ft_name":            name,
		"ft_num_start_index": 0,
		"token_count":        rbtLockAmount,
	}
	return s.submit(ctx, "/api/create-ft", body)
}

// TransferFT sends fungible tokens. The creator DID disambiguates FT classes
// that share a name.
func (s *Signer) TransferFT(ctx context.Context, receiver, name string, count int, creatorDID, comment string) (*Result, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, count)
	}
	if strings.TrimSpace(receiver) == "" {
		return nil, ErrInvalidRecipient
	}
	body := map[string]any{
		"comment":     comment,
		"creatorDID":  creatorDID,
		"ft_count":    count,
		"ft_name":     name,
		"quorum_type": quorumType,
		"receiver":    receiver,
		"sender":      s.userDID,
	}
	res, err := s.submit(ctx, "/api/initiate-ft-transfer", body)
	if err != nil {
		return nil, err
	}
	s.record("ft", receiver, float64(count), comment, res)
	return res, nil
}

// DeployContract uploads a smart contract's artifacts, obtains its address,
// and deploys it with the given RBT value locked. The schema file is
// required by the current node API but slated for removal there.
func (s *Signer) DeployContract(ctx context.Context, wasmFile, codeFile, schemaFile string, value float64, comment string) (string, *Result, error) {
	address, err := s.generateContractAddress(ctx, wasmFile, codeFile, schemaFile)
	if err != nil {
		return "", nil, err
	}

	body := map[string]any{
		"comment":            comment,
		"deployerAddr":       s.userDID,
		"quorumType":         quorumType,
		"rbtAmount":          value,
		"smartContractToken": address,
	}
	res, err := s.submit(ctx, "/api/deploy-smart-contract", body)
	if err != nil {
		return "", nil, err
	}
	return address, res, nil
}

// ExecuteContract invokes a deployed smart contract with arbitrary data.
func (s *Signer) ExecuteContract(ctx context.Context, address, data, comment string) (*Result, error) {
	body := map[string]any{
		"comment":            comment,
		"executorAddr":       s.userDID,
		"quorumType":         quorumType,
		"smartContractData":  data,
		"smartContractToken": address,
	}
	return s.submit(ctx, "/api/execute-smart-contract", body)
}

// DeployNFT uploads an NFT's artifact and metadata, obtains its address, and
// deploys it.
func (s *Signer) DeployNFT(ctx context.Context, artifactFile, metadataFile, nftData string, value float64, metadataInfo, fileName string) (string, *Result, error) {
	address, err := s.generateNFTAddress(ctx, artifactFile, metadataFile)
	if err != nil {
		return "", nil, err
	}

	body := map[string]any{
		"did":           s.userDID,
		"nft":           address,
		"nft_data":      nftData,
		"nft_file_name": fileName,
		"nft_metadata":  metadataInfo,
		"nft_value":     value,
		"quorum_type":   quorumType,
	}
	res, err := s.submit(ctx, "/api/deploy-nft", body)
	if err != nil {
		return "", nil, err
	}
	return address, res, nil
}

// ExecuteNFT invokes a deployed NFT with arbitrary data.
func (s *Signer) ExecuteNFT(ctx context.Context, address, data, comment string) (*Result, error) {
	body := map[string]any{
		"comment":     comment,
		"executor":    s.userDID,
		"nft":         address,
		"nft_data":    data,
		"quorum_type": quorumType,
		"receiver":    "",
	}
	return s.submit(ctx, "/api/execute-nft", body)
}

// TransferNFT moves NFT ownership to another DID. The node models this as an
// NFT execution with a receiver.
func (s *Signer) TransferNFT(ctx context.Context, address, receiver string, value float64, data, comment string) (*Result, error) {
	if strings.TrimSpace(receiver) == "" {
		return nil, ErrInvalidRecipient
	}
	body := map[string]any{
		"comment":     comment,
		"executor":    s.userDID,
		"nft":         address,
		"nft_data":    data,
		"nft_value":   value,
		"quorum_type": quorumType,
		"receiver":    receiver,
	}
	res, err := s.submit(ctx, "/api/execute-nft", body)
	if err != nil {
		return nil, err
	}
	s.record("nft", receiver, value, comment, res)
	return res, nil
}

// submit posts a transaction initiation and answers the node's signing
// challenges until it settles on a verdict.
func (s *Signer) submit(ctx context.Context, endpoint string, body any) (*Result, error) {
	var resp client.Response
	if err := s.client.PostJSON(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}

	for resp.Status {
		ch, ok := resp.Challenge()
		if !ok {
			break
		}
		hash, err := base64.StdEncoding.DecodeString(ch.Hash)
		if err != nil {
			return nil, fmt.Errorf("signer: malformed challenge hash from %s: %v", endpoint, err)
		}
		resp = client.Response{}
		if err := s.client.PostJSON(ctx, "/api/signature-response", did.ChallengeReply(ch.ID, s.keypair.Sign(hash)), &resp); err != nil {
			return nil, err
		}
	}

	if !resp.Status {
		s.log.Warningf("%s rejected: %s", endpoint, resp.Message)
	}
	return &Result{Status: resp.Status, Message: resp.Message}, nil
}

func (s *Signer) generateContractAddress(ctx context.Context, wasmFile, codeFile, schemaFile string) (string, error) {
	files := map[string]string{
		"binaryCodePath": wasmFile,
		"rawCodePath":    codeFile,
		"schemaFilePath": schemaFile,
	}
	return s.generateAddress(ctx, "/api/generate-smart-contract", files)
}

func (s *Signer) generateNFTAddress(ctx context.Context, artifactFile, metadataFile string) (string, error) {
	files := map[string]string{
		"artifact": artifactFile,
		"metadata": metadataFile,
	}
	return s.generateAddress(ctx, "/api/create-nft", files)
}

// generateAddress uploads asset files and returns the token address the node
// minted for them.
func (s *Signer) generateAddress(ctx context.Context, endpoint string, files map[string]string) (string, error) {
	var resp client.Response
	fields := map[string]string{"did": s.userDID}
	if err := s.client.PostMultipart(ctx, endpoint, fields, files, &resp); err != nil {
		return "", err
	}
	if !resp.Status {
		return "", fmt.Errorf("signer: %s failed: %s", endpoint, resp.Message)
	}

	var address string
	if err := json.Unmarshal(resp.Result, &address); err != nil || address == "" {
		return "", fmt.Errorf("signer: %s returned no token address: %s", endpoint, resp.Message)
	}
	return address, nil
}

func (s *Signer) record(kind, receiver string, amount float64, comment string, res *Result) {
	if s.history == nil {
		return
	}
	err := s.history.Append(&txlog.Record{
		Kind:     kind,
		Sender:   s.userDID,
		Receiver: receiver,
		Amount:   amount,
		Comment:  comment,
		Status:   res.Status,
		Message:  res.Message,
	})
	if err != nil {
		s.log.Errorf("failed to record %s transfer: %v", kind, err)
	}
}
