// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package querier implements read-only queries against a Rubix node, token
// balances and token-chain data. It validates addresses locally before
// spending a round trip, DIDs are CIDv1 and asset addresses CIDv0.
package querier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"gopkg.in/op/go-logging.v1"

	"github.com/rubixchain/rubix-sdk-go/client"
	"github.com/rubixchain/rubix-sdk-go/did"
	"github.com/rubixchain/rubix-sdk-go/log"
)

var (
	// ErrInvalidDID is returned when a query names a malformed DID.
	ErrInvalidDID = errors.New("querier: invalid DID")

	// ErrInvalidAddress is returned when a query names a malformed smart
	// contract or NFT address.
	ErrInvalidAddress = errors.New("querier: invalid asset address")

	// ErrQuery is returned when the node rejects a query.
	ErrQuery = errors.New("querier: query rejected by node")
)

// Querier issues read-only queries to a Rubix node.
type Querier struct {
	client *client.Client
	log    *logging.Logger
}

// New constructs a Querier bound to a node client.
func New(c *client.Client, logBackend *log.Backend) *Querier {
	q := &Querier{client: c}
	if logBackend != nil {
		q.log = logBackend.GetLogger("querier")
	} else {
		backend, _ := log.New("", "ERROR", true)
		q.log = backend.GetLogger("querier")
	}
	return q
}

// RBTBalance is the RBT holding of a DID.
type RBTBalance struct {
	DID string
	RBT float64
}

// RBTBalance returns the RBT balance of the given DID.
func (q *Querier) RBTBalance(ctx context.Context, userDID string) (*RBTBalance, error) {
	if !did.Validate(userDID) {
		return nil, fmt.Errorf("%w: '%v'", ErrInvalidDID, userDID)
	}

	var resp struct {
		client.Response
		AccountInfo []struct {
			RBTAmount float64 `json:"rbt_amount"`
		} `json:"account_info"`
	}
	params := url.Values{"did": []string{userDID}}
	if err := q.client.Get(ctx, "/api/get-account-info", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrQuery, resp.Message)
	}
	if len(resp.AccountInfo) == 0 {
		return nil, fmt.Errorf("%w: node returned no account info for '%v'", ErrQuery, userDID)
	}
	return &RBTBalance{DID: userDID, RBT: resp.AccountInfo[0].RBTAmount}, nil
}

// FTBalance is the holding of one fungible token class.
type FTBalance struct {
	FTName     string `json:"ft_name"`
	FTCount    int    `json:"ft_count"`
	CreatorDID string `json:"creator_did"`
}

// FTBalances returns the fungible token holdings of the given DID.
func (q *Querier) FTBalances(ctx context.Context, userDID string) ([]FTBalance, error) {
	if !did.Validate(userDID) {
		return nil, fmt.Errorf("%w: '%v'", ErrInvalidDID, userDID)
	}

	var resp struct {
		client.Response
		FTInfo []FTBalance `json:"ft_info"`
	}
	params := url.Values{"did": []string{userDID}}
	if err := q.client.Get(ctx, "/api/get-ft-info-by-did", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrQuery, resp.Message)
	}
	return resp.FTInfo, nil
}

// ContractBlock is one block of a smart contract's token chain.
type ContractBlock struct {
	BlockNo            int    `json:"BlockNo"`
	BlockID            string `json:"BlockId"`
	SmartContractData  string `json:"SmartContractData"`
	Epoch              int    `json:"Epoch"`
	InitiatorSignature string `json:"InitiatorSignature"`
	ExecutorDID        string `json:"ExecutorDID"`
	InitiatorSignData  string `json:"InitiatorSignData"`
}

// ContractStates returns the token-chain blocks of a smart contract, oldest
// first. With latestOnly, only the newest block comes back.
func (q *Querier) ContractStates(ctx context.Context, address string, latestOnly bool) ([]ContractBlock, error) {
	if !did.ValidateAssetAddress(address) {
		return nil, fmt.Errorf("%w: '%v'", ErrInvalidAddress, address)
	}

	var resp struct {
		client.Response
		SCTDataReply []ContractBlock `json:"SCTDataReply"`
	}
	body := map[string]any{
		"latest": latestOnly,
		"token":  address,
	}
	if err := q.client.PostJSON(ctx, "/api/get-smart-contract-token-chain-data", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrQuery, resp.Message)
	}
	if resp.SCTDataReply == nil {
		return nil, fmt.Errorf("%w: no states found for contract '%v'", ErrQuery, address)
	}
	return resp.SCTDataReply, nil
}

// NFTBlock is one block of an NFT's token chain.
type NFTBlock struct {
	BlockNo       int     `json:"BlockNo"`
	BlockID       string  `json:"BlockId"`
	NFTData       string  `json:"NFTData"`
	NFTOwner      string  `json:"NFTOwner"`
	NFTValue      float64 `json:"NFTValue"`
	Epoch         int     `json:"Epoch"`
	TransactionID string  `json:"TransactionID"`
}

// NFTStates returns the token-chain blocks of an NFT, oldest first.
func (q *Querier) NFTStates(ctx context.Context, address string, latestOnly bool) ([]NFTBlock, error) {
	if !did.ValidateAssetAddress(address) {
		return nil, fmt.Errorf("%w: '%v'", ErrInvalidAddress, address)
	}

	var resp struct {
		client.Response
		NFTDataReply []NFTBlock `json:"NFTDataReply"`
	}
	params := url.Values{
		"latest": []string{strconv.FormatBool(latestOnly)},
		"nft":    []string{address},
	}
	if err := q.client.Get(ctx, "/api/get-nft-token-chain-data", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrQuery, resp.Message)
	}
	if resp.NFTDataReply == nil {
		return nil, fmt.Errorf("%w: no states found for NFT '%v'", ErrQuery, address)
	}
	return resp.NFTDataReply, nil
}

// NFTInfo describes one NFT.
type NFTInfo struct {
	NFT      string  `json:"nft"`
	OwnerDID string  `json:"owner_did"`
	Value    float64 `json:"nft_value"`
	Metadata string  `json:"nft_metadata"`
	FileName string  `json:"nft_file_name"`
}

// ListNFTs returns every NFT known to the node's subnet.
func (q *Querier) ListNFTs(ctx context.Context) ([]NFTInfo, error) {
	var resp struct {
		client.Response
		NFTs []NFTInfo `json:"nfts"`
	}
	if err := q.client.Get(ctx, "/api/list-nfts", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrQuery, resp.Message)
	}
	return resp.NFTs, nil
}

// NFTsByOwner returns the NFTs owned by the given DID.
func (q *Querier) NFTsByOwner(ctx context.Context, ownerDID string) ([]NFTInfo, error) {
	if !did.Validate(ownerDID) {
		return nil, fmt.Errorf("%w: '%v'", ErrInvalidDID, ownerDID)
	}

	var resp struct {
		client.Response
		NFTs []NFTInfo `json:"nfts"`
	}
	params := url.Values{"did": []string{ownerDID}}
	if err := q.client.Get(ctx, "/api/get-nfts-by-did", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrQuery, resp.Message)
	}
	return resp.NFTs, nil
}
