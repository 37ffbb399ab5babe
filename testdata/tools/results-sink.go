// results-sink is a sample helper binary for transport.command. It speaks
// newline-delimited JSON-RPC 2.0 over stdio, accepts exam/submit and prints
// each submission to stderr.
//
//go:build ignore

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

type submission struct {
	SessionID string `json:"session_id"`
	GuideID   string `json:"guide_id"`
	Summary   struct {
		TotalSteps  int  `json:"total_steps"`
		Completed   int  `json:"completed"`
		TotalErrors int  `json:"total_errors"`
		Passed      bool `json:"passed"`
	} `json:"summary"`
}

func main() {
	fmt.Fprintln(os.Stderr, "results-sink: listening")

	received := 0
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			continue
		}

		// shutdown is a notification (no ID)
		if req.Method == "shutdown" {
			fmt.Fprintf(os.Stderr, "results-sink: %d submission(s)\n", received)
			os.Exit(0)
		}

		resp := response{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "exam/submit":
			var sub submission
			if err := json.Unmarshal(req.Params, &sub); err != nil {
				resp.Error = map[string]interface{}{
					"code":    -32602,
					"message": fmt.Sprintf("invalid submission: %v", err),
				}
				break
			}
			received++
			fmt.Fprintf(os.Stderr, "results-sink: session %s guide %s: %d/%d done, %d error(s), passed=%v\n",
				sub.SessionID, sub.GuideID, sub.Summary.Completed, sub.Summary.TotalSteps,
				sub.Summary.TotalErrors, sub.Summary.Passed)
			resp.Result = map[string]interface{}{"accepted": true, "received": received}

		default:
			resp.Error = map[string]interface{}{
				"code":    -32601,
				"message": fmt.Sprintf("method %q not found", req.Method),
			}
		}

		data, _ := json.Marshal(resp)
		fmt.Fprintln(os.Stdout, string(data))
	}
}
