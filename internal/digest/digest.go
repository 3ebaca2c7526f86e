// Package digest computes and checks evidence content digests.
//
// SHA-256 is the authoritative integrity signal; MD5 is computed alongside it
// for legacy tooling compatibility and is reported but never trusted on its
// own, given known collision weaknesses.
package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// chunkSize bounds memory use while streaming; it has no effect on the
// resulting digests.
const chunkSize = 64 * 1024

// Pair holds both digests of one byte stream, hex-encoded.
type Pair struct {
	SHA256 string
	MD5    string
}

// Writer accumulates both digests from bytes written through it. Used at
// ingestion so digests are computed from the bytes exactly as stored.
type Writer struct {
	sha hash.Hash
	md  hash.Hash
	n   int64
}

// NewWriter returns a digest accumulator.
func NewWriter() *Writer {
	return &Writer{sha: sha256.New(), md: md5.New()}
}

// Write feeds p into both hashes. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.sha.Write(p)
	w.md.Write(p)
	w.n += int64(len(p))
	return len(p), nil
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int64 { return w.n }

// Sum returns the accumulated digest pair.
func (w *Writer) Sum() Pair {
	return Pair{
		SHA256: hex.EncodeToString(w.sha.Sum(nil)),
		MD5:    hex.EncodeToString(w.md.Sum(nil)),
	}
}

// File streams the file at path in fixed-size chunks and returns its digest
// pair. Identical bytes always yield identical digests.
func File(path string) (Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pair{}, fmt.Errorf("digest open: %w", err)
	}
	defer f.Close()

	w := NewWriter()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		return Pair{}, fmt.Errorf("digest read %s: %w", path, err)
	}
	return w.Sum(), nil
}

// Report compares a stored digest pair against a freshly computed one.
type Report struct {
	Match   bool // SHA-256 comparison, the authoritative signal
	Stored  Pair
	Current Pair
}

// MD5Anomaly reports the undecided legacy case: MD5 differs while SHA-256
// matches. It is flagged for the operator, never resolved automatically.
func (r Report) MD5Anomaly() bool {
	return r.Match && r.Stored.MD5 != r.Current.MD5
}

// Compare builds a verification report. Only SHA-256 decides Match.
func Compare(stored, current Pair) Report {
	return Report{
		Match:   stored.SHA256 == current.SHA256,
		Stored:  stored,
		Current: current,
	}
}
