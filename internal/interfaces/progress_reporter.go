package interfaces

import "github.com/ternarybob/hirescout/internal/models"

// ProgressReporter observes a pipeline run
type ProgressReporter interface {
	RunStarted(runID string, total int)
	RecordProcessed(runID string, index int, record models.JobRecord)
	RunFinished(runID string, outcome models.BatchOutcome, cancelled bool)
}
