package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ormasoftchile/labguide/pkg/queue"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSend(t *testing.T) {
	var got queue.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/exam/submit", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"accepted":true}`)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL+"/", "secret")
	req, err := queue.NewRequest("exam/submit", map[string]int{"score": 7})
	require.NoError(t, err)
	req.ID = "req-1"

	resp, err := h.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"accepted":true}`, string(resp.Body))
	assert.Equal(t, "exam/submit", got.Method)
	assert.JSONEq(t, `{"score":7}`, string(got.Payload))
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, "").Send(context.Background(), &queue.Request{ID: "x", Method: "m"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, "nope", se.Body)
}

func TestHTTPRespectsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewHTTP(srv.URL, "").Send(ctx, &queue.Request{ID: "x", Method: "m"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHTTPThroughQueue(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	sw := &Switch{}
	q := queue.New(sw.Locate, queue.WithDelay(0))

	var first error
	q.Enqueue("1", &queue.Request{Method: "a"}, func(_ *queue.Response, err error) { first = err }, 0)
	require.NoError(t, q.Wait(context.Background()))
	assert.True(t, errors.Is(first, queue.ErrTransportUnavailable))

	sw.Set(NewHTTP(srv.URL, ""))
	q.Enqueue("2", &queue.Request{Method: "b"}, nil, time.Second)
	q.Enqueue("3", &queue.Request{Method: "c"}, nil, time.Second)
	require.NoError(t, q.Wait(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/b", "/c"}, order)
}

func TestSwitch(t *testing.T) {
	sw := &Switch{}
	_, ok := sw.Locate()
	assert.False(t, ok)

	h := NewHTTP("http://example.invalid", "")
	sw.Set(h)
	got, ok := sw.Locate()
	assert.True(t, ok)
	assert.Same(t, h, got)

	sw.Set(nil)
	_, ok = sw.Locate()
	assert.False(t, ok)
}

// TestHelperProcess is not a real test: it is the JSON-RPC helper spawned by
// the JSON-RPC tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("LABGUIDE_WANT_HELPER") != "1" {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			os.Exit(2)
		}
		switch req.Method {
		case "shutdown":
			os.Exit(0)
		case "fail":
			_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32000, "message": "refused"}})
		case "die":
			os.Exit(3)
		default:
			_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"method": req.Method, "params": req.Params}})
		}
	}
	os.Exit(0)
}

func helperTransport() *JSONRPC {
	return NewJSONRPC([]string{os.Args[0], "-test.run=^TestHelperProcess$"}, "LABGUIDE_WANT_HELPER=1")
}

func TestJSONRPCSend(t *testing.T) {
	j := helperTransport()
	defer j.Shutdown()

	resp, err := j.Send(context.Background(), &queue.Request{ID: "r1", Method: "exam/submit", Payload: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.RequestID)
	assert.JSONEq(t, `{"method":"exam/submit","params":{"x":1}}`, string(resp.Body))

	_, err = j.Send(context.Background(), &queue.Request{ID: "r2", Method: "fail"})
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32000, rpcErr.Code)
}

func TestJSONRPCRespawnsDeadHelper(t *testing.T) {
	j := helperTransport()
	defer j.Shutdown()

	_, err := j.Send(context.Background(), &queue.Request{ID: "r1", Method: "die"})
	require.Error(t, err)

	// Wait for the exit to be observed, then the next call respawns.
	require.Eventually(t, func() bool {
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.proc == nil {
			return true
		}
		select {
		case <-j.proc.done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := j.Send(context.Background(), &queue.Request{ID: "r2", Method: "ping"})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "ping")
}

func TestJSONRPCNoCommand(t *testing.T) {
	_, err := NewJSONRPC(nil).Send(context.Background(), &queue.Request{Method: "x"})
	require.Error(t, err)
	assert.NoError(t, NewJSONRPC(nil).Shutdown())
}
