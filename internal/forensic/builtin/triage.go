// Package builtin holds the analysis modules shipped with the server; the
// heavier parsers live out of tree and register themselves the same way.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"os"
	"path/filepath"

	"github.com/custodialabs/custodia/internal/forensic"
)

// triageReadLimit caps how much of a file entropy triage reads. Large images
// are judged by their first megabyte.
const triageReadLimit = 1 << 20

// entropyThreshold above which content is flagged (packed/encrypted).
const entropyThreshold = 7.5

// Triage performs basic file triage: Shannon entropy and MIME checks.
type Triage struct{}

func (Triage) Name() string        { return "triage" }
func (Triage) Description() string { return "Basic file triage (entropy, MIME check)" }

// Run computes entropy over the file head and flags suspicious content.
func (Triage) Run(ctx context.Context, exec forensic.ExecContext) (*forensic.Result, error) {
	if exec.Evidence == nil {
		return forensic.Skip("triage requires an evidence file"), nil
	}

	info, err := os.Stat(exec.EvidencePath)
	if err != nil {
		return nil, fmt.Errorf("stat evidence: %w", err)
	}
	readSize := info.Size()
	if readSize > triageReadLimit {
		readSize = triageReadLimit
	}

	f, err := os.Open(exec.EvidencePath)
	if err != nil {
		return nil, fmt.Errorf("open evidence: %w", err)
	}
	defer f.Close()

	// io.ReadFull: a partial read would zero-pad the tail and skew entropy.
	data := make([]byte, readSize)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}

	entropy := shannonEntropy(data)
	mimeGuess := mime.TypeByExtension(filepath.Ext(exec.Evidence.OriginalName))

	summary := map[string]any{
		"entropy":       entropy,
		"mime_guessed":  mimeGuess,
		"size":          info.Size(),
		"is_suspicious": entropy > entropyThreshold,
	}

	artifact, err := writeArtifact(exec, "triage", summary)
	if err != nil {
		return nil, err
	}
	return &forensic.Result{Summary: summary, ArtifactPath: artifact}, nil
}

// shannonEntropy returns bits of entropy per byte, in [0, 8].
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	length := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// writeArtifact stores the module's structured output beneath the per-case,
// per-tool artifact directory.
func writeArtifact(exec forensic.ExecContext, tool string, payload map[string]any) (string, error) {
	path, err := exec.Vault.ArtifactPath(exec.CaseID, tool, exec.Evidence.ID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
