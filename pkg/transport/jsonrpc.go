package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ormasoftchile/labguide/pkg/queue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// JSONRPC forwards requests to a helper binary speaking newline-delimited
// JSON-RPC 2.0 over stdio. The process is spawned on first use and respawned
// if it died.
type JSONRPC struct {
	argv []string
	env  []string

	mu   sync.Mutex
	proc *rpcProcess
}

type rpcProcess struct {
	cmd    *exec.Cmd
	stdin  *json.Encoder
	reader *bufio.Reader
	nextID int64
	done   chan struct{}
}

// RPCError is an error object returned by the helper.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewJSONRPC creates a transport for argv[0] argv[1:]...
func NewJSONRPC(argv []string, env ...string) *JSONRPC {
	return &JSONRPC{argv: argv, env: env}
}

// Send implements queue.Transport. The JSON-RPC method is req.Method and
// params is req.Payload.
func (j *JSONRPC) Send(ctx context.Context, req *queue.Request) (*queue.Response, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	proc, err := j.getOrSpawn()
	if err != nil {
		return nil, errors.Wrap(err, "spawn helper")
	}
	result, err := proc.call(ctx, req.Method, req.Payload)
	if err != nil {
		// A half-read response leaves the pipe unusable.
		if ctx.Err() != nil {
			proc.kill()
			j.proc = nil
		}
		return nil, errors.Wrapf(err, "%s", req.Method)
	}
	return &queue.Response{RequestID: req.ID, Body: result}, nil
}

// Shutdown stops the helper process.
func (j *JSONRPC) Shutdown() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.proc == nil {
		return nil
	}
	err := j.proc.shutdown(2 * time.Second)
	j.proc = nil
	return err
}

func (j *JSONRPC) getOrSpawn() (*rpcProcess, error) {
	if j.proc != nil {
		select {
		case <-j.proc.done:
			j.proc = nil
		default:
			return j.proc, nil
		}
	}
	if len(j.argv) == 0 {
		return nil, errors.New("no helper command configured")
	}

	log.Debug().Strs("argv", j.argv).Msg("spawning transport helper")
	cmd := exec.Command(j.argv[0], j.argv[1:]...)
	cmd.Env = append(os.Environ(), j.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %q", j.argv[0])
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			log.Debug().Str("helper", j.argv[0]).Msg(sc.Text())
		}
	}()

	j.proc = &rpcProcess{
		cmd:    cmd,
		stdin:  json.NewEncoder(stdin),
		reader: bufio.NewReader(stdout),
		done:   done,
	}
	return j.proc, nil
}

func (p *rpcProcess) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	id := atomic.AddInt64(&p.nextID, 1)
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if len(params) > 0 {
		msg["params"] = params
	}
	if err := p.stdin.Encode(msg); err != nil {
		return nil, errors.Wrap(err, "write request")
	}

	type readResult struct {
		data json.RawMessage
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			ch <- readResult{err: errors.Wrap(err, "read response")}
			return
		}
		var resp struct {
			ID     int64           `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *RPCError       `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			ch <- readResult{err: errors.Wrapf(err, "unmarshal (raw: %s)", strings.TrimSpace(line))}
			return
		}
		if resp.Error != nil {
			ch <- readResult{err: resp.Error}
			return
		}
		if resp.ID != id {
			ch <- readResult{err: errors.Errorf("response id %d does not match request %d", resp.ID, id)}
			return
		}
		ch <- readResult{data: resp.Result}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, errors.New("helper process exited")
	}
}

func (p *rpcProcess) shutdown(grace time.Duration) error {
	_ = p.stdin.Encode(map[string]any{"jsonrpc": "2.0", "method": "shutdown"})
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}
	return p.kill()
}

func (p *rpcProcess) kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}
