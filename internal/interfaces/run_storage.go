package interfaces

import (
	"context"

	"github.com/ternarybob/hirescout/internal/models"
)

// RunStorage keeps the history of batch extraction runs
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.BatchRun) error
	GetRun(ctx context.Context, id string) (*models.BatchRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.BatchRun, error)
}
