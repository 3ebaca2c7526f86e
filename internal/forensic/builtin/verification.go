package builtin

import (
	"context"

	"github.com/custodialabs/custodia/internal/digest"
	"github.com/custodialabs/custodia/internal/forensic"
)

// Verification re-hashes a vault file and compares against the digests stored
// at ingestion. SHA-256 decides the match; MD5 is reported alongside.
type Verification struct{}

func (Verification) Name() string { return "verification" }
func (Verification) Description() string {
	return "Verify evidence integrity against stored hashes"
}

// Run recomputes both digests and records the comparison. A mismatch is a
// successful run whose result reports integrity_ok=false; surfacing it as a
// distinct audit action is the caller's job.
func (Verification) Run(ctx context.Context, exec forensic.ExecContext) (*forensic.Result, error) {
	if exec.Evidence == nil {
		return forensic.Skip("verification requires an evidence file"), nil
	}

	current, err := digest.File(exec.EvidencePath)
	if err != nil {
		return nil, err
	}
	report := digest.Compare(digest.Pair{SHA256: exec.Evidence.SHA256, MD5: exec.Evidence.MD5}, current)

	summary := map[string]any{
		"integrity_ok":   report.Match,
		"stored_sha256":  report.Stored.SHA256,
		"current_sha256": report.Current.SHA256,
		"stored_md5":     report.Stored.MD5,
		"current_md5":    report.Current.MD5,
		"md5_anomaly":    report.MD5Anomaly(),
	}

	artifact, err := writeArtifact(exec, "verification", summary)
	if err != nil {
		return nil, err
	}
	return &forensic.Result{Summary: summary, ArtifactPath: artifact}, nil
}
