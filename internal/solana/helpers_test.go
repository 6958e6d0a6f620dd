package solana

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// rpcHandler answers one decoded request. Returning a non-nil rpcErr sends a
// JSON-RPC error object; status other than 200 sends an empty body.
type rpcHandler func(req rpcRequest) (status int, result interface{}, rpcErr *RPCError)

type fakeNode struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeNode(t *testing.T, h rpcHandler) *fakeNode {
	t.Helper()
	n := &fakeNode{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.hits.Add(1)
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		status, result, rpcErr := h(req)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(n.Close)
	return n
}

func okNode(t *testing.T, result interface{}) *fakeNode {
	return newFakeNode(t, func(rpcRequest) (int, interface{}, *RPCError) {
		return http.StatusOK, result, nil
	})
}

func statusNode(t *testing.T, status int) *fakeNode {
	return newFakeNode(t, func(rpcRequest) (int, interface{}, *RPCError) {
		return status, nil, nil
	})
}

func errorNode(t *testing.T, code int) *fakeNode {
	return newFakeNode(t, func(rpcRequest) (int, interface{}, *RPCError) {
		return http.StatusOK, nil, &RPCError{Code: code, Message: "node error"}
	})
}

func newTestFailover(t *testing.T, opts []ExecutorOption, nodes ...*fakeNode) *Failover {
	t.Helper()
	urls := make([]string, len(nodes))
	for i, n := range nodes {
		urls[i] = n.URL
	}
	pool, err := NewEndpointPool(urls)
	if err != nil {
		t.Fatalf("NewEndpointPool: %v", err)
	}
	return NewFailover(pool, NewExecutor(opts...), nil)
}
