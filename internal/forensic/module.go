// Package forensic defines the analysis-module contract and the registry the
// dispatcher resolves tool names against.
package forensic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/vault"
)

// ExecContext carries everything a module may need for one run. EvidencePath
// is resolved and validated by the dispatcher before the module is invoked;
// it is empty for case-wide tools.
type ExecContext struct {
	CaseID       uuid.UUID
	Evidence     *model.Evidence // nil for case-wide tools
	EvidencePath string          // absolute, inside the vault
	Options      map[string]any
	Vault        *vault.Vault
}

// Result is a successful or skipped module outcome. Failures are returned as
// errors and captured by the dispatcher.
type Result struct {
	// Skipped marks a run that did not apply to the input (e.g. wrong file
	// type). It is not an error.
	Skipped bool
	Reason  string

	// Summary is the small structured payload stored on the job; the full
	// output lives in the artifact file.
	Summary map[string]any

	// ArtifactPath is where the module wrote its structured output.
	ArtifactPath string
}

// Skip returns a skipped result with the given reason.
func Skip(reason string) *Result {
	return &Result{Skipped: true, Reason: reason}
}

// Module is the uniform contract every analysis capability implements.
type Module interface {
	// Name returns the stable identifier used as a job's tool name.
	Name() string

	// Description returns a human-readable summary.
	Description() string

	// Run executes the module against one case/evidence pair.
	Run(ctx context.Context, exec ExecContext) (*Result, error)
}

// Registry maps tool names to module implementations. Lookup is exact string
// match; it holds no other state.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module. Registering a duplicate name is a programming
// error and returns one.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := m.Name()
	if _, ok := r.modules[name]; ok {
		return fmt.Errorf("module %q already registered", name)
	}
	r.modules[name] = m
	return nil
}

// Get resolves a tool name. Unknown names yield ErrModuleNotFound.
func (r *Registry) Get(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", errs.ErrModuleNotFound, name)
	}
	return m, nil
}

// List returns all registered modules sorted by name.
func (r *Registry) List() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
