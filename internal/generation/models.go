package generation

import (
	"time"

	"github.com/google/uuid"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
	"certmint/certificate-portal/certificate-portal-backend/pkg/workflows"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// jobTransitions encodes the job lifecycle. Processing may loop back to
// itself (in-queue retry) or to pending (worker requeue); completed is
// terminal.
var jobTransitions = workflows.NewStateMachine(map[string][]string{
	string(StatusPending):    {string(StatusProcessing)},
	string(StatusProcessing): {string(StatusProcessing), string(StatusPending), string(StatusCompleted), string(StatusFailed)},
	string(StatusFailed):     {string(StatusProcessing), string(StatusPending)},
})

// CanTransition reports whether a job may move between the two statuses.
func CanTransition(from, to JobStatus) bool {
	return jobTransitions.CanTransition(string(from), string(to))
}

// Job is one queued certificate generation request. The rendering core knows
// nothing about jobs: this layer owns the pending → processing →
// completed/failed state machine, attempt counting and retry policy, and only
// calls into the core, which is safe because renders are idempotent for the
// same inputs.
type Job struct {
	ID               uuid.UUID               `json:"id" db:"id"`
	TemplateID       uuid.UUID               `json:"template_id" db:"template_id"`
	RequestedBy      uuid.UUID               `json:"requested_by" db:"requested_by"`
	DatasetKey       string                  `json:"dataset_key" db:"dataset_key"`
	DatasetName      string                  `json:"dataset_name" db:"dataset_name"`
	Tier             certificate.PackageTier `json:"tier" db:"tier"`
	Status           JobStatus               `json:"status" db:"status"`
	Attempts         int                     `json:"attempts" db:"attempts"`
	ErrorMessage     string                  `json:"error_message,omitempty" db:"error_message"`
	ArchiveKey       string                  `json:"archive_key,omitempty" db:"archive_key"`
	CertificateCount int                     `json:"certificate_count" db:"certificate_count"`
	CreatedAt        time.Time               `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at" db:"updated_at"`
}
