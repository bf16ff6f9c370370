package httpdao_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldbook/pkg/adapters/httpdao"
	"github.com/aretw0/fieldbook/pkg/core"
)

func newClient(t *testing.T, handler http.Handler, opts ...func(*httpdao.Config)) *httpdao.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := httpdao.Config{BaseURL: srv.URL + "/", Token: "secret"}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := httpdao.New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_Validates(t *testing.T) {
	_, err := httpdao.New(httpdao.Config{})
	assert.Error(t, err)
	_, err = httpdao.New(httpdao.Config{BaseURL: "ftp://example.org"})
	assert.Error(t, err)
}

func TestPush(t *testing.T) {
	var got struct {
		ID     string         `json:"id"`
		Owner  string         `json:"owner"`
		Fields map[string]any `json:"fields"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/children/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "id 1", r.PathValue("id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "id 1", "rev": "1-abc"})
	})
	c := newClient(t, mux)

	ack, err := c.Push(context.Background(), core.KindChild, core.Record{
		ID:     "id 1",
		Owner:  "user1",
		Fields: core.Fields{"name": "child1"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.Ack{ID: "id 1", Revision: "1-abc"}, ack)
	assert.Equal(t, "user1", got.Owner)
	assert.Equal(t, "child1", got.Fields["name"])
}

func TestPullAll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/enquiries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m1", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{"records":[{"id":"e1","owner":"user2","fields":{"_rev":"2-x","name":"a"}}],"marker":"m2"}`))
	})
	c := newClient(t, mux)

	page, err := c.PullAll(context.Background(), core.KindEnquiry, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m2", page.Marker)
	require.Len(t, page.Records, 1)
	rec := page.Records[0]
	assert.Equal(t, core.KindEnquiry, rec.Kind)
	assert.Equal(t, "e1", rec.ID)
	assert.Equal(t, "user2", rec.Owner)
	assert.Equal(t, "2-x", rec.Revision())
}

func TestPullOne(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/children/known", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"known","owner":"user1","fields":{"name":"x"}}`))
	})
	c := newClient(t, mux)

	rec, err := c.PullOne(context.Background(), core.KindChild, "known")
	require.NoError(t, err)
	assert.Equal(t, "x", rec.Fields["name"])

	_, err = c.PullOne(context.Background(), core.KindChild, "missing")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestRemoteErrors(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "record rejected", http.StatusUnprocessableEntity)
	}))

	_, err := c.Push(context.Background(), core.KindChild, core.Record{ID: "bad"})
	var remoteErr *httpdao.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusUnprocessableEntity, remoteErr.StatusCode)
	assert.Equal(t, "record rejected", remoteErr.Body)
}

func TestPing(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.NoError(t, c.Ping(context.Background()))

	noHealth := newClient(t, http.NotFoundHandler())
	assert.NoError(t, noHealth.Ping(context.Background()))

	failing := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	assert.Error(t, failing.Ping(context.Background()))

	down, err := httpdao.New(httpdao.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)
	assert.Error(t, down.Ping(context.Background()))
}

func TestTimeout(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}), func(cfg *httpdao.Config) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := c.PullOne(context.Background(), core.KindChild, "slow")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimit(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}), func(cfg *httpdao.Config) {
		cfg.Rate = 1
		cfg.Burst = 1
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Ping(ctx))
	// The bucket is empty and refills after a second, past the deadline.
	assert.Error(t, c.Ping(ctx))
	assert.Equal(t, int32(1), hits.Load())
}
