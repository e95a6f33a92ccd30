// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/get-account-info", r.URL.Path)
		require.Equal(t, "bafytest", r.URL.Query().Get("did"))
		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "ok",
			"result":  nil,
		})
	}))
	defer srv.Close()

	c, err := New(&Config{NodeURL: srv.URL})
	require.NoError(t, err)

	var resp Response
	params := url.Values{}
	params.Set("did", "bafytest")
	err = c.Get(context.Background(), "/api/get-account-info", params, &resp)
	require.NoError(t, err)
	require.True(t, resp.Status)
	require.Equal(t, "ok", resp.Message)
}

func TestPostJSONSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sekrit", r.Header.Get("X-API-Key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "bafyreceiver", body["receiver"])

		json.NewEncoder(w).Encode(map[string]any{"status": true})
	}))
	defer srv.Close()

	c, err := New(&Config{NodeURL: srv.URL, APIKey: "sekrit"})
	require.NoError(t, err)

	var resp Response
	err = c.PostJSON(context.Background(), "/api/initiate-rbt-transfer", map[string]string{"receiver": "bafyreceiver"}, &resp)
	require.NoError(t, err)
	require.True(t, resp.Status)
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(&Config{NodeURL: srv.URL})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/api/list-nfts", nil, &Response{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(250 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := New(&Config{NodeURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/api/list-nfts", nil, &Response{})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestNodeUnreachable(t *testing.T) {
	// Grab a port nothing is listening on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	nodeURL := srv.URL
	srv.Close()

	c, err := New(&Config{NodeURL: nodeURL, Timeout: time.Second})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/api/list-nfts", nil, &Response{})
	require.ErrorIs(t, err, ErrNodeUnreachable)
}

func TestInvalidNodeURL(t *testing.T) {
	_, err := New(&Config{NodeURL: "localhost:20000"})
	require.Error(t, err)
}

func TestChallengeDecoding(t *testing.T) {
	r := &Response{Result: json.RawMessage(`{"id":"req-1","hash":"aGFzaA=="}`)}
	ch, ok := r.Challenge()
	require.True(t, ok)
	require.Equal(t, "req-1", ch.ID)
	require.Equal(t, "aGFzaA==", ch.Hash)

	for _, raw := range []string{"null", `"done"`, `{"other":1}`, ""} {
		r := &Response{Result: json.RawMessage(raw)}
		_, ok := r.Challenge()
		require.False(t, ok, "raw: %s", raw)
	}
}
