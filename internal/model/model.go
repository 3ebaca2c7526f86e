// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

// Job lifecycle: PENDING -> RUNNING -> {COMPLETED, FAILED}.
// COMPLETED and FAILED are terminal; no transition ever leaves them.
const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid reports whether the status is one of the four lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Case groups evidence and jobs under one investigation.
// Its identity is immutable once created.
type Case struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Evidence is a durable pointer into the content vault. Digest fields are set
// exactly once at ingestion, from the bytes as stored, and never recomputed
// implicitly afterwards.
type Evidence struct {
	ID           uuid.UUID
	CaseID       uuid.UUID
	Path         string // relative to the vault root
	OriginalName string
	Size         int64
	SHA256       string
	MD5          string // secondary/legacy signal, never authoritative
	IngestedAt   time.Time
}

// Job is a unit of analysis work. It is created PENDING and mutated only by
// the dispatcher and lifecycle manager, never by API handlers.
//
// Invariants: CompletedAt is set iff the status is terminal; Result is set
// only on COMPLETED; Error is set only on FAILED.
type Job struct {
	ID          uuid.UUID
	CaseID      uuid.UUID
	EvidenceID  *uuid.UUID // nil for case-wide tools (e.g. reporting)
	ToolName    string
	Options     map[string]any
	Status      JobStatus
	QueuedAt    time.Time
	CreatedAt   time.Time
	CompletedAt *time.Time
	Result      map[string]any
	Error       string
}

// AuditEntry is one append-only chain-of-custody record. Entries are never
// updated or deleted; Seq preserves insertion order even when timestamps tie
// at clock resolution.
type AuditEntry struct {
	Seq       int64
	CaseID    *uuid.UUID // nil for actions not scoped to a case (e.g. auth)
	Action    string     // dotted namespace: "case.create", "auth.login", ...
	Actor     string
	Origin    string // client network origin
	Details   map[string]any
	CreatedAt time.Time
}

// AuditFilter narrows an audit query. Zero-value fields are not applied.
// Results are always ordered by insertion sequence ascending.
type AuditFilter struct {
	CaseID       *uuid.UUID
	Actor        string
	ActionPrefix string
}

// User is an operator account, consumed by the auth gateway and mutated only
// by administrative provisioning.
type User struct {
	ID        uuid.UUID
	Username  string
	PwdHash   []byte // argon2id(password, Salt)
	Salt      []byte
	Role      string
	Active    bool
	CreatedAt time.Time
}

// Setting is one row of the process-wide durable key/value store, used for
// singleton state such as the legal-acknowledgment record.
type Setting struct {
	Key       string
	Value     map[string]any
	UpdatedAt time.Time
}

// Tokens carries an issued session token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Acknowledgment is the decoded one-time legal-authorization record stored
// under the "authorization_ack" setting key.
type Acknowledgment struct {
	Text  string
	Actor string
	TS    time.Time
}
