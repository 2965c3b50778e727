package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func rpcResult(t *testing.T, w http.ResponseWriter, id uint64, result interface{}) {
	t.Helper()
	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "eth_getBalance" {
			t.Errorf("expected method eth_getBalance, got %s", req.Method)
		}
		if req.Params[1] != "latest" {
			t.Errorf("expected latest block tag, got %v", req.Params[1])
		}

		// 1 ETH in wei
		rpcResult(t, w, req.ID, "0xde0b6b3a7640000")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	bal, err := client.GetBalance(ctx, "0xC91A5902da7321054cEdAeB49ce9A6a3835Fc417")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	want := new(big.Int)
	want.SetString("1000000000000000000", 10)
	if bal.Cmp(want) != 0 {
		t.Errorf("expected %s wei, got %s", want, bal)
	}
}

func TestHTTPClient_GetTokenBalance(t *testing.T) {
	holder := "0xc9dE877a53f85BF51D76faed0C8c8842EFb35782"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "eth_call" {
			t.Errorf("expected method eth_call, got %s", req.Method)
		}

		callObj := req.Params[0].(map[string]interface{})
		data := callObj["data"].(string)
		if !strings.HasPrefix(data, balanceOfSelector) {
			t.Errorf("calldata missing balanceOf selector: %s", data)
		}
		if !strings.HasSuffix(data, strings.ToLower(strings.TrimPrefix(holder, "0x"))) {
			t.Errorf("calldata missing holder address: %s", data)
		}

		// 500,000 USDT with 6 decimals
		rpcResult(t, w, req.ID, "0x000000000000000000000000000000000000000000000000000000746a528800")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	bal, err := client.GetTokenBalance(ctx, "0xdAC17F958D2ee523a2206206994597C13D831ec7", holder)
	if err != nil {
		t.Fatalf("GetTokenBalance: %v", err)
	}

	if bal.Cmp(big.NewInt(500_000_000_000)) != 0 {
		t.Errorf("expected 500000000000, got %s", bal)
	}
}

func TestHTTPClient_EmptyCallResultIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		rpcResult(t, w, req.ID, "0x")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	bal, err := client.GetTokenBalance(context.Background(), "0xdAC17F958D2ee523a2206206994597C13D831ec7", "0xc9dE877a53f85BF51D76faed0C8c8842EFb35782")
	if err != nil {
		t.Fatalf("GetTokenBalance: %v", err)
	}
	if bal.Sign() != 0 {
		t.Errorf("expected zero balance, got %s", bal)
	}
}

func TestHTTPClient_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		rpcResult(t, w, req.ID, "0x10")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(10*time.Millisecond))
	n, err := client.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if n != 16 {
		t.Errorf("expected block 16, got %d", n)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_ExhaustedRetriesAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(10*time.Millisecond))
	_, err := client.BlockNumber(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("expected transient classification, got %v", err)
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "invalid params"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(10*time.Millisecond))
	_, err := client.GetBalance(context.Background(), "0xbad")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Errorf("RPC error should not be transient: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("RPC error should not be retried: %d calls", calls.Load())
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0x0", 0},
		{"0x", 0},
		{"0x1a4", 420},
		{"0xde0b6b3a7640000", 1000000000000000000},
	}

	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if err != nil {
			t.Errorf("parseQuantity(%q): %v", tt.in, err)
			continue
		}
		if got.Int64() != tt.want {
			t.Errorf("parseQuantity(%q): got %d, want %d", tt.in, got.Int64(), tt.want)
		}
	}

	if _, err := parseQuantity("0xzz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}
