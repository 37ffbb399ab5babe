package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// VerifyResult is the outcome of verifying a trace.
type VerifyResult struct {
	Records  []Record
	Valid    bool
	BrokenAt int // 1-based line of the first broken record, -1 if none
	Error    string
}

// VerifyFile opens path and calls Verify.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open trace file")
	}
	defer f.Close()
	return Verify(f)
}

// Verify reads every record and checks the hash chain and sequence numbers.
// A broken chain is reported in the result, not as an error.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	res := &VerifyResult{Valid: true, BrokenAt: -1}
	expected := Genesis
	n := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		n++

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return res.broken(n, fmt.Sprintf("record %d: invalid JSON: %v", n, err)), nil
		}
		if rec.PrevHash != expected {
			return res.broken(n, fmt.Sprintf("record %d: prev_hash mismatch", n)), nil
		}
		if rec.Seq != n {
			return res.broken(n, fmt.Sprintf("record %d: seq %d out of order", n, rec.Seq)), nil
		}
		h := sha256.Sum256(line)
		expected = hex.EncodeToString(h[:])
		res.Records = append(res.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read trace")
	}
	return res, nil
}

func (r *VerifyResult) broken(at int, msg string) *VerifyResult {
	r.Valid = false
	r.BrokenAt = at
	r.Error = msg
	return r
}
