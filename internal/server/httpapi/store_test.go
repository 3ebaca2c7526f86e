package httpapi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
)

// memState backs every repository fake for handler tests, so the full stack
// from route to service runs against one shared in-memory state.
type memState struct {
	mu       sync.Mutex
	users    map[string]*model.User
	settings map[string]map[string]any
	cases    map[uuid.UUID]*model.Case
	evidence map[uuid.UUID]*model.Evidence
	jobs     map[uuid.UUID]*model.Job
	audit    []model.AuditEntry
}

func newMemState() *memState {
	return &memState{
		users:    map[string]*model.User{},
		settings: map[string]map[string]any{},
		cases:    map[uuid.UUID]*model.Case{},
		evidence: map[uuid.UUID]*model.Evidence{},
		jobs:     map[uuid.UUID]*model.Job{},
	}
}

type memUsers struct{ s *memState }

var _ repository.UserRepository = memUsers{}

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.Username]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	r.s.users[u.Username] = &cpy
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID == id {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *u
	return &cpy, nil
}

type memSettings struct{ s *memState }

var _ repository.SettingRepository = memSettings{}

func (r memSettings) Get(_ context.Context, key string) (*model.Setting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.settings[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &model.Setting{Key: key, Value: v}, nil
}

func (r memSettings) Set(_ context.Context, key string, value map[string]any) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings[key] = value
	return nil
}

func (r memSettings) Delete(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.settings, key)
	return nil
}

type memCases struct{ s *memState }

var _ repository.CaseRepository = memCases{}

func (r memCases) Create(_ context.Context, c *model.Case) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cpy := *c
	cpy.CreatedAt = time.Now()
	r.s.cases[c.ID] = &cpy
	return nil
}

func (r memCases) Get(_ context.Context, id uuid.UUID) (*model.Case, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cases[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (r memCases) List(_ context.Context) ([]model.Case, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Case
	for _, c := range r.s.cases {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

type memEvidence struct{ s *memState }

var _ repository.EvidenceRepository = memEvidence{}

func (r memEvidence) Create(_ context.Context, e *model.Evidence) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cpy := *e
	cpy.IngestedAt = time.Now()
	r.s.evidence[e.ID] = &cpy
	return nil
}

func (r memEvidence) Get(_ context.Context, id uuid.UUID) (*model.Evidence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.evidence[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *e
	return &cpy, nil
}

func (r memEvidence) ListByCase(_ context.Context, caseID uuid.UUID) ([]model.Evidence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Evidence
	for _, e := range r.s.evidence {
		if e.CaseID == caseID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type memJobs struct{ s *memState }

var _ repository.JobRepository = memJobs{}

func (r memJobs) Create(_ context.Context, j *model.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cpy := *j
	cpy.QueuedAt = time.Now()
	cpy.CreatedAt = cpy.QueuedAt
	r.s.jobs[j.ID] = &cpy
	return nil
}

func (r memJobs) Get(_ context.Context, id uuid.UUID) (*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *j
	return &cpy, nil
}

func (r memJobs) ListByCase(_ context.Context, caseID uuid.UUID) ([]model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Job
	for _, j := range r.s.jobs {
		if j.CaseID == caseID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].QueuedAt.Before(out[k].QueuedAt) })
	return out, nil
}

func (r memJobs) NextPending(context.Context) (*model.Job, error) { return nil, errs.ErrNotFound }
func (r memJobs) Claim(context.Context, uuid.UUID) (bool, error)  { return false, nil }
func (r memJobs) Complete(context.Context, uuid.UUID, map[string]any) error {
	return nil
}
func (r memJobs) Fail(context.Context, uuid.UUID, string) error { return nil }
func (r memJobs) FailPending(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}

type memAudit struct{ s *memState }

var _ repository.AuditRepository = memAudit{}

func (r memAudit) Append(_ context.Context, e *model.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.Seq = int64(len(r.s.audit) + 1)
	e.CreatedAt = time.Now()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func (r memAudit) Query(_ context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range r.s.audit {
		if f.CaseID != nil && (e.CaseID == nil || *e.CaseID != *f.CaseID) {
			continue
		}
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if f.ActionPrefix != "" && !strings.HasPrefix(e.Action, f.ActionPrefix) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
