package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sync/internal/analysis"
	"solana-token-sync/internal/domain"
	"solana-token-sync/internal/ingestion"
	"solana-token-sync/internal/solana"
	"solana-token-sync/internal/storage"
	"solana-token-sync/internal/storage/memory"
)

const mint = "mint-a"

type fakeSync struct {
	mu     sync.Mutex
	paused bool
	cursor *domain.SyncCursor
	events []ingestion.Event
}

func (f *fakeSync) Cursor(_ context.Context, m string) (*domain.SyncCursor, error) {
	if f.cursor == nil || f.cursor.Mint != m {
		return nil, storage.ErrNotFound
	}
	return f.cursor, nil
}

func (f *fakeSync) Events(m string, n int) []ingestion.Event {
	var out []ingestion.Event
	for _, e := range f.events {
		if e.Mint == m {
			out = append(out, e)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func (f *fakeSync) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeSync) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeSync) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

type fakePool struct{ eps []solana.Endpoint }

func (p fakePool) Endpoints() []solana.Endpoint { return p.eps }
func (p fakePool) Current() int                 { return 1 }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newCache(t *testing.T) *ClusterCache {
	t.Helper()
	ctx := context.Background()
	tokens := memory.NewTokenStore()
	txs := memory.NewTransactionStore()
	token, err := tokens.Upsert(ctx, mint)
	require.NoError(t, err)

	// a-b-c chain plus an isolated d-e pair
	pairs := [][2]string{{"a", "b"}, {"b", "c"}, {"d", "e"}}
	for i, p := range pairs {
		_, err := txs.Insert(ctx, &domain.Transaction{
			TokenID:   token.ID,
			Signature: fmt.Sprintf("sig-%d", i),
			Timestamp: int64(i+1) * 1000,
			Kind:      domain.KindTransfer,
			From:      p[0],
			To:        p[1],
			Amount:    decimal.NewFromInt(1),
		})
		require.NoError(t, err)
	}
	analyzer := analysis.NewAnalyzer(analysis.Options{Tokens: tokens, Transactions: txs, Logger: quietLogger()})
	return NewClusterCache(tokens, txs, analyzer, 0, quietLogger())
}

func newTestServer(t *testing.T, s *fakeSync, cache *ClusterCache) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewServer(Options{
		Sync: s,
		Endpoints: fakePool{eps: []solana.Endpoint{
			{Index: 0, URL: "http://a", Healthy: false},
			{Index: 1, URL: "http://b", Healthy: true},
		}},
		Clusters: cache,
		Logger:   quietLogger(),
	})
}

func do(t *testing.T, srv *Server, method, path string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, nil)

	code, env := do(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","paused":false}`, string(env.Data))
}

func TestServer_PauseAndResume(t *testing.T) {
	s := &fakeSync{}
	srv := newTestServer(t, s, nil)

	code, _ := do(t, srv, http.MethodPost, "/pause")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, s.Paused())

	code, _ = do(t, srv, http.MethodPost, "/resume")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, s.Paused())
}

func TestServer_Endpoints(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, nil)

	code, env := do(t, srv, http.MethodGet, "/endpoints")
	require.Equal(t, http.StatusOK, code)

	var eps []endpointView
	require.NoError(t, json.Unmarshal(env.Data, &eps))
	require.Len(t, eps, 2)
	assert.False(t, eps[0].Current)
	assert.True(t, eps[1].Current)
	assert.True(t, eps[1].Healthy)
}

func TestServer_Cursor(t *testing.T) {
	s := &fakeSync{cursor: &domain.SyncCursor{Mint: mint, Before: "old", LastSignature: "new", UpdatedAt: 42}}
	srv := newTestServer(t, s, nil)

	code, env := do(t, srv, http.MethodGet, "/tokens/"+mint+"/cursor")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"mint":"mint-a","before":"old","last_signature":"new","updated_at":42}`, string(env.Data))

	code, env = do(t, srv, http.MethodGet, "/tokens/other/cursor")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, http.StatusNotFound, env.Code)
}

func TestServer_EventsLimit(t *testing.T) {
	s := &fakeSync{}
	for i := 0; i < 5; i++ {
		s.events = append(s.events, ingestion.Event{Time: int64(i) * 1000, Mint: mint, Message: fmt.Sprintf("event %d", i)})
	}
	srv := newTestServer(t, s, nil)

	code, env := do(t, srv, http.MethodGet, "/tokens/"+mint+"/events?limit=2")
	require.Equal(t, http.StatusOK, code)
	var events []ingestion.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 2)
	assert.Equal(t, "event 4", events[1].Message)

	code, _ = do(t, srv, http.MethodGet, "/tokens/"+mint+"/events?limit=zero")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, srv, http.MethodGet, "/tokens/unknown/events")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestServer_Clusters(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, newCache(t))

	code, env := do(t, srv, http.MethodGet, "/tokens/"+mint+"/clusters")
	require.Equal(t, http.StatusOK, code)
	var body struct {
		Depth    int                    `json:"depth"`
		Clusters []domain.WalletCluster `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 5, body.Depth)
	require.Len(t, body.Clusters, 2)
	assert.Equal(t, []string{"a", "b", "c"}, body.Clusters[0].Members)
	assert.Equal(t, []string{"d", "e"}, body.Clusters[1].Members)
}

func TestServer_ClustersAtDepthZero(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, newCache(t))

	code, env := do(t, srv, http.MethodGet, "/tokens/"+mint+"/clusters?depth=0")
	require.Equal(t, http.StatusOK, code)
	var body struct {
		Clusters []domain.WalletCluster `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Len(t, body.Clusters, 5)

	code, env = do(t, srv, http.MethodGet, "/tokens/"+mint+"/clusters?depth=0&connected=true")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Empty(t, body.Clusters)

	code, _ = do(t, srv, http.MethodGet, "/tokens/"+mint+"/clusters?depth=-1")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_ClustersUnknownMint(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, newCache(t))

	code, _ := do(t, srv, http.MethodGet, "/tokens/nope/clusters")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_ClustersDisabled(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, nil)

	code, _ := do(t, srv, http.MethodGet, "/tokens/"+mint+"/stats")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServer_Stats(t *testing.T) {
	srv := newTestServer(t, &fakeSync{}, newCache(t))

	code, env := do(t, srv, http.MethodGet, "/tokens/"+mint+"/stats")
	require.Equal(t, http.StatusOK, code)
	var body struct {
		Stats analysis.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 3, body.Stats.Transactions)
	assert.Equal(t, 5, body.Stats.Wallets)
	assert.Equal(t, 5, body.Stats.ConnectedWallets)
	assert.Equal(t, 2, body.Stats.Clusters)
}

func TestClusterCache_RefreshReplacesSnapshot(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	first, err := cache.Snapshot(ctx, mint)
	require.NoError(t, err)
	again, err := cache.Snapshot(ctx, mint)
	require.NoError(t, err)
	assert.Same(t, first, again, "second read is served from the cache")

	require.NoError(t, cache.Refresh(ctx, mint))
	fresh, err := cache.Snapshot(ctx, mint)
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
}
