// Package dispatch drives queued jobs through their lifecycle: it resolves
// the tool, claims the job, validates the evidence file, executes the module
// isolated from orchestrator failure, and records the terminal transition.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/custodialabs/custodia/internal/audit"
	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/forensic"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
	"github.com/custodialabs/custodia/internal/vault"
)

// maxErrorLen caps the error text stored on a job. Module failures are
// recorded verbatim up to this limit.
const maxErrorLen = 4096

// Dispatcher pulls PENDING jobs and executes them on a small worker pool.
// Lifecycle and audit writes are short independent transactions; a module
// blocking on I/O holds no lock needed by other jobs.
type Dispatcher struct {
	jobs     repository.JobRepository
	evidence repository.EvidenceRepository
	registry *forensic.Registry
	vault    *vault.Vault
	auditor  *audit.Recorder
	log      *zap.Logger

	workers int
	poll    time.Duration
}

// New constructs a dispatcher.
func New(
	jobs repository.JobRepository,
	evidence repository.EvidenceRepository,
	registry *forensic.Registry,
	v *vault.Vault,
	auditor *audit.Recorder,
	log *zap.Logger,
	workers int,
	poll time.Duration,
) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Dispatcher{
		jobs:     jobs,
		evidence: evidence,
		registry: registry,
		vault:    v,
		auditor:  auditor,
		log:      log,
		workers:  workers,
		poll:     poll,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. In-flight
// module executions run to completion.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, worker int) {
	for {
		worked, err := d.DispatchOne(ctx)
		if err != nil {
			d.log.Error("dispatch", zap.Int("worker", worker), zap.Error(err))
		}
		if worked && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.poll):
		}
	}
}

// DispatchOne processes at most one queued job. It reports false when the
// queue was empty. Returned errors are infrastructure failures (store
// unreachable); module failures terminate the job, never the dispatcher.
func (d *Dispatcher) DispatchOne(ctx context.Context) (bool, error) {
	j, err := d.jobs.NextPending(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("next pending: %w", err)
	}

	// Unknown tools fail the job from PENDING; it must never reach RUNNING.
	mod, err := d.registry.Get(j.ToolName)
	if err != nil {
		ok, ferr := d.jobs.FailPending(ctx, j.ID, truncate(err.Error()))
		if ferr != nil {
			return false, fmt.Errorf("fail pending: %w", ferr)
		}
		if ok {
			d.auditJobFailed(ctx, j, "module_not_found")
		}
		return true, nil
	}

	claimed, err := d.jobs.Claim(ctx, j.ID)
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		// Another worker won the race; that execution is the only one.
		return true, nil
	}

	exec, err := d.buildExecContext(ctx, j)
	if err != nil {
		return true, d.failJob(ctx, j, err, failureClass(err))
	}

	res, err := d.execute(ctx, mod, exec)
	if err != nil {
		return true, d.failJob(ctx, j, err, "execution_error")
	}

	summary := res.Summary
	if res.Skipped {
		summary = map[string]any{"skipped": true, "reason": res.Reason}
	}
	if summary == nil {
		summary = map[string]any{}
	}
	if res.ArtifactPath != "" {
		summary["output_file"] = res.ArtifactPath
	}
	if err := d.jobs.Complete(ctx, j.ID, summary); err != nil {
		return true, fmt.Errorf("complete job %s: %w", j.ID, err)
	}
	d.auditor.Record(ctx, &j.CaseID, audit.ActionJobCompleted, audit.SystemActor, "", map[string]any{
		"job_id":  j.ID.String(),
		"tool":    j.ToolName,
		"skipped": res.Skipped,
	})
	return true, nil
}

// buildExecContext resolves the evidence file once, at dispatch time, and
// re-validates that it exists before any module code runs.
func (d *Dispatcher) buildExecContext(ctx context.Context, j *model.Job) (forensic.ExecContext, error) {
	exec := forensic.ExecContext{
		CaseID:  j.CaseID,
		Options: j.Options,
		Vault:   d.vault,
	}
	if j.EvidenceID == nil {
		return exec, nil
	}
	e, err := d.evidence.Get(ctx, *j.EvidenceID)
	if err != nil {
		return exec, fmt.Errorf("load evidence %s: %w", j.EvidenceID, err)
	}
	path, err := d.vault.ResolveExisting(e.Path)
	if err != nil {
		return exec, err
	}
	exec.Evidence = e
	exec.EvidencePath = path
	return exec, nil
}

// execute isolates the module run: a panic inside a module becomes an error
// on the job, not a dispatcher crash.
func (d *Dispatcher) execute(ctx context.Context, mod forensic.Module, exec forensic.ExecContext) (res *forensic.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module %s panicked: %v", mod.Name(), r)
		}
	}()
	res, err = mod.Run(ctx, exec)
	if err == nil && res == nil {
		err = fmt.Errorf("module %s returned no result", mod.Name())
	}
	return res, err
}

// failJob records the terminal FAILED transition and its audit entry. The
// audit details carry the failure class, not the raw error, to avoid leaking
// internals into the queryable ledger.
func (d *Dispatcher) failJob(ctx context.Context, j *model.Job, cause error, class string) error {
	if err := d.jobs.Fail(ctx, j.ID, truncate(cause.Error())); err != nil {
		return fmt.Errorf("fail job %s: %w", j.ID, err)
	}
	d.auditJobFailed(ctx, j, class)
	return nil
}

func (d *Dispatcher) auditJobFailed(ctx context.Context, j *model.Job, class string) {
	d.auditor.Record(ctx, &j.CaseID, audit.ActionJobFailed, audit.SystemActor, "", map[string]any{
		"job_id": j.ID.String(),
		"tool":   j.ToolName,
		"class":  class,
	})
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, errs.ErrEvidenceMissing):
		return "evidence_missing"
	case errors.Is(err, errs.ErrNotFound):
		return "evidence_not_found"
	default:
		return "execution_error"
	}
}

// truncate caps oversized error text while keeping it verbatim up front.
func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen]
}
