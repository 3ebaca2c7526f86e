package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/custodialabs/custodia/internal/audit"
	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/limiter"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
)

/************ in-memory repository fakes ************/

type fakeUsers struct {
	byName map[string]*model.User
	getErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]map[string]any
	setErr error
}

var _ repository.SettingRepository = (*fakeSettings)(nil)

func (f *fakeSettings) Get(_ context.Context, key string) (*model.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &model.Setting{Key: key, Value: v}, nil
}

func (f *fakeSettings) Set(_ context.Context, key string, value map[string]any) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]map[string]any{}
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettings) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	appErr  error
}

var _ repository.AuditRepository = (*fakeAuditRepo)(nil)

func (f *fakeAuditRepo) Append(_ context.Context, e *model.AuditEntry) error {
	if f.appErr != nil {
		return f.appErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e.Seq = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAuditRepo) Query(_ context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range f.entries {
		if filter.CaseID != nil && (e.CaseID == nil || *e.CaseID != *filter.CaseID) {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		if filter.ActionPrefix != "" && !strings.HasPrefix(e.Action, filter.ActionPrefix) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAuditRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeCases struct {
	byID map[uuid.UUID]*model.Case
}

var _ repository.CaseRepository = (*fakeCases)(nil)

func (f *fakeCases) Create(_ context.Context, c *model.Case) error {
	if f.byID == nil {
		f.byID = map[uuid.UUID]*model.Case{}
	}
	cpy := *c
	f.byID[c.ID] = &cpy
	return nil
}

func (f *fakeCases) Get(_ context.Context, id uuid.UUID) (*model.Case, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *c
	return &cpy, nil
}

func (f *fakeCases) List(_ context.Context) ([]model.Case, error) {
	var out []model.Case
	for _, c := range f.byID {
		out = append(out, *c)
	}
	return out, nil
}

type fakeEvidence struct {
	byID      map[uuid.UUID]*model.Evidence
	createErr error
}

var _ repository.EvidenceRepository = (*fakeEvidence)(nil)

func (f *fakeEvidence) Create(_ context.Context, e *model.Evidence) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byID == nil {
		f.byID = map[uuid.UUID]*model.Evidence{}
	}
	cpy := *e
	f.byID[e.ID] = &cpy
	return nil
}

func (f *fakeEvidence) Get(_ context.Context, id uuid.UUID) (*model.Evidence, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *e
	return &cpy, nil
}

func (f *fakeEvidence) ListByCase(_ context.Context, caseID uuid.UUID) ([]model.Evidence, error) {
	var out []model.Evidence
	for _, e := range f.byID {
		if e.CaseID == caseID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Job
}

var _ repository.JobRepository = (*fakeJobs)(nil)

func (f *fakeJobs) Create(_ context.Context, j *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = map[uuid.UUID]*model.Job{}
	}
	cpy := *j
	f.byID[j.ID] = &cpy
	return nil
}

func (f *fakeJobs) Get(_ context.Context, id uuid.UUID) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cpy := *j
	return &cpy, nil
}

func (f *fakeJobs) ListByCase(_ context.Context, caseID uuid.UUID) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Job
	for _, j := range f.byID {
		if j.CaseID == caseID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobs) NextPending(context.Context) (*model.Job, error)      { return nil, errs.ErrNotFound }
func (f *fakeJobs) Claim(context.Context, uuid.UUID) (bool, error)       { return false, nil }
func (f *fakeJobs) Complete(context.Context, uuid.UUID, map[string]any) error { return nil }
func (f *fakeJobs) Fail(context.Context, uuid.UUID, string) error        { return nil }
func (f *fakeJobs) FailPending(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}

/************ helpers ************/

func newRecorder(repo repository.AuditRepository) *audit.Recorder {
	return audit.NewRecorder(repo, zap.NewNop())
}

func openLimiter() *limiter.Limiter {
	return limiter.New(nil, limiter.NewMemory(), 1000, time.Minute, zap.NewNop())
}
