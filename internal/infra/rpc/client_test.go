package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
		Backoff:  testBackoff,
	}, testLogger())
	return client, srv
}

func rpcResult(t *testing.T, w http.ResponseWriter, result string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`)); err != nil {
		t.Errorf("write response: %v", err)
	}
}

func TestCallSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.JSONRPC != "2.0" || req.Method != "getEpochInfo" {
			t.Errorf("unexpected request: %+v", req)
		}
		rpcResult(t, w, `{"epoch":634}`)
	})

	epoch, err := client.GetEpochInfo(context.Background())
	if err != nil {
		t.Fatalf("GetEpochInfo() error = %v", err)
	}
	if epoch != 634 {
		t.Errorf("epoch = %d, want 634", epoch)
	}
}

func TestCallSurfacesRPCErrorWithoutRetry(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))
	})

	_, err := client.Call(context.Background(), "bogusMethod", nil)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *Error", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("code = %d, want -32601", rpcErr.Code)
	}
	if hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", hits.Load())
	}
}

func TestCallRetriesHTTPFailures(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		rpcResult(t, w, `{"epoch":100}`)
	})

	epoch, err := client.GetEpochInfo(context.Background())
	if err != nil {
		t.Fatalf("GetEpochInfo() error = %v", err)
	}
	if epoch != 100 {
		t.Errorf("epoch = %d, want 100", epoch)
	}
	if hits.Load() != 3 {
		t.Errorf("requests = %d, want 3", hits.Load())
	}
}

func TestGetStakeDelegationParsesAccount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `{"value":{"data":{"parsed":{"info":{"stake":{"delegation":{
			"activationEpoch":"600",
			"deactivationEpoch":"18446744073709551615",
			"stake":"5000000000"
		}}}}}}}`)
	})

	delegation, err := client.GetStakeDelegation(context.Background(), "stakeAcc1")
	if err != nil {
		t.Fatalf("GetStakeDelegation() error = %v", err)
	}
	if delegation == nil {
		t.Fatal("GetStakeDelegation() = nil, want delegation")
	}
	if delegation.ActivationEpoch != 600 {
		t.Errorf("activation = %d, want 600", delegation.ActivationEpoch)
	}
	// The ledger reports u64 max for active delegations; it is clamped so
	// the value survives a signed bigint column.
	if delegation.DeactivationEpoch != 1<<63-1 {
		t.Errorf("deactivation = %d, want clamped MaxInt64", delegation.DeactivationEpoch)
	}
	if delegation.Stake != 5_000_000_000 {
		t.Errorf("stake = %d, want 5000000000", delegation.Stake)
	}
}

func TestGetStakeDelegationMissingAccount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `{"value":null}`)
	})

	delegation, err := client.GetStakeDelegation(context.Background(), "gone")
	if err != nil {
		t.Fatalf("GetStakeDelegation() error = %v", err)
	}
	if delegation != nil {
		t.Errorf("GetStakeDelegation() = %+v, want nil for a closed account", delegation)
	}
}

func TestGetInflationRewardsKeepsNilEntries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `[{"amount":100000,"postBalance":5100000,"epoch":633,"effectiveSlot":273024000},null]`)
	})

	rewards, err := client.GetInflationRewards(context.Background(), []string{"a", "b"}, 633)
	if err != nil {
		t.Fatalf("GetInflationRewards() error = %v", err)
	}
	if len(rewards) != 2 {
		t.Fatalf("len = %d, want 2 (positional result)", len(rewards))
	}
	if rewards[0] == nil || rewards[0].Amount != 100000 || rewards[0].PostBalance != 5100000 {
		t.Errorf("rewards[0] = %+v, want amount 100000 postBalance 5100000", rewards[0])
	}
	if rewards[1] != nil {
		t.Errorf("rewards[1] = %+v, want nil for identity without a reward", rewards[1])
	}
}

func TestGetBlockTimeNull(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `null`)
	})

	_, err := client.GetBlockTime(context.Background(), 1)
	if !errors.Is(err, ErrBlockTimeNotFound) {
		t.Errorf("GetBlockTime() error = %v, want ErrBlockTimeNotFound", err)
	}
}

func TestGetProgramAccountsFilter(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		var program string
		json.Unmarshal(req.Params[0], &program)
		if program != StakeProgramID {
			t.Errorf("program = %q, want stake program", program)
		}
		var opts struct {
			Filters []struct {
				Memcmp struct {
					Offset int    `json:"offset"`
					Bytes  string `json:"bytes"`
				} `json:"memcmp"`
			} `json:"filters"`
		}
		json.Unmarshal(req.Params[1], &opts)
		if len(opts.Filters) != 1 || opts.Filters[0].Memcmp.Offset != 124 {
			t.Errorf("filters = %+v, want memcmp at voter offset 124", opts.Filters)
		}
		rpcResult(t, w, `[{"pubkey":"acc1"},{"pubkey":"acc2"}]`)
	})

	pubkeys, err := client.GetProgramAccounts(context.Background(), "validator1")
	if err != nil {
		t.Fatalf("GetProgramAccounts() error = %v", err)
	}
	if len(pubkeys) != 2 || pubkeys[0] != "acc1" || pubkeys[1] != "acc2" {
		t.Errorf("pubkeys = %v, want [acc1 acc2]", pubkeys)
	}
}
