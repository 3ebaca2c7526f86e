// Package vault owns the content-storage root for evidence bytes and module
// artifacts. The ingestion path is the sole writer of evidence files; all
// analysis modules read evidence and write only beneath their artifact
// directory.
package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/custodialabs/custodia/internal/digest"
	"github.com/custodialabs/custodia/internal/errs"
)

// Vault addresses files by case/evidence-relative paths under a single root.
type Vault struct {
	root string
}

// New opens a vault rooted at dir, creating it if needed.
func New(dir string) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("vault root: %w", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string { return v.root }

// sanitizeName strips path separators and traversal fragments from an
// operator-supplied filename before it becomes part of a vault path.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "" {
		return "unnamed"
	}
	return name
}

// StoreEvidence streams r into the vault under the case's evidence directory,
// computing both digests from the bytes as stored. It returns the
// vault-relative path, the digest pair, and the stored size.
func (v *Vault) StoreEvidence(caseID, evidenceID uuid.UUID, filename string, r io.Reader) (string, digest.Pair, int64, error) {
	rel := filepath.Join(caseID.String(), "evidence",
		fmt.Sprintf("%s_%s", evidenceID, sanitizeName(filename)))
	abs := filepath.Join(v.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", digest.Pair{}, 0, fmt.Errorf("evidence dir: %w", err)
	}

	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", digest.Pair{}, 0, fmt.Errorf("evidence create: %w", err)
	}
	dw := digest.NewWriter()
	_, err = io.Copy(io.MultiWriter(f, dw), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(abs)
		return "", digest.Pair{}, 0, fmt.Errorf("evidence write: %w", err)
	}
	return rel, dw.Sum(), dw.Size(), nil
}

// Resolve maps a vault-relative path to an absolute one, rejecting escapes
// from the vault root.
func (v *Vault) Resolve(rel string) (string, error) {
	abs := filepath.Join(v.root, rel)
	if abs != v.root && !strings.HasPrefix(abs, v.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path %q escapes vault", errs.ErrValidation, rel)
	}
	return abs, nil
}

// ResolveExisting resolves rel and stats the file. A database record whose
// vault file is gone yields ErrEvidenceMissing.
func (v *Vault) ResolveExisting(rel string) (string, error) {
	abs, err := v.Resolve(rel)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", errs.ErrEvidenceMissing, rel)
		}
		return "", err
	}
	return abs, nil
}

// ArtifactPath returns the absolute output path for a module run, creating
// the per-case, per-tool artifact directory. Modules write structured output
// there keyed by evidence id.
func (v *Vault) ArtifactPath(caseID uuid.UUID, tool string, evidenceID uuid.UUID) (string, error) {
	dir := filepath.Join(v.root, caseID.String(), "artifacts", tool)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("artifact dir: %w", err)
	}
	return filepath.Join(dir, evidenceID.String()+".json"), nil
}
