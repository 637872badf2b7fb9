package services

import (
	"github.com/luminahost/backend/internal/models"
	"gorm.io/gorm"
)

// startRun opens a persisted workflow run at its first step
func startRun(db *gorm.DB, kind models.WorkflowKind, userID uint, serverID *uint, step string) *models.WorkflowRun {
	run := &models.WorkflowRun{
		Kind:     kind,
		UserID:   userID,
		ServerID: serverID,
		Step:     step,
		Status:   models.WorkflowStatusRunning,
	}
	db.Create(run)
	return run
}

// advanceRun moves the step cursor forward
func advanceRun(db *gorm.DB, run *models.WorkflowRun, step string) {
	run.Step = step
	db.Model(run).Update("step", step)
}

// finishRun closes the run; a non-nil err records the failed step
func finishRun(db *gorm.DB, run *models.WorkflowRun, err error) {
	if err != nil {
		run.Status = models.WorkflowStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = models.WorkflowStatusCompleted
	}
	db.Model(run).Updates(map[string]interface{}{
		"status": run.Status,
		"error":  run.Error,
	})
}
