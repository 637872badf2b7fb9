package models

import (
	"time"
)

// WorkflowKind identifies a multi-step billing/provisioning workflow
type WorkflowKind string

const (
	WorkflowKindProvision    WorkflowKind = "provision"
	WorkflowKindTariffChange WorkflowKind = "tariff_change"
)

// WorkflowStatus represents the state of a workflow run
type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// WorkflowRun is a persisted step cursor for a multi-step workflow that
// spans the panel API and the local database. A crash mid-run leaves the row
// pointing at the last completed step so an operator can see exactly how far
// the run got. Completed panel-side steps are reusable on retry (user lookup
// by email is idempotent), so no compensation is recorded here.
type WorkflowRun struct {
	ID       uint           `gorm:"column:id;primaryKey" json:"id"`
	Kind     WorkflowKind   `gorm:"column:kind;size:30;not null;index" json:"kind"`
	UserID   uint           `gorm:"column:user_id;not null;index" json:"user_id"`
	ServerID *uint          `gorm:"column:server_id;index" json:"server_id"`
	Step     string         `gorm:"column:step;size:50" json:"step"`
	Status   WorkflowStatus `gorm:"column:status;size:20;default:running;index" json:"status"`
	Error    string         `gorm:"column:error;size:1000" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (WorkflowRun) TableName() string {
	return "workflow_runs"
}
