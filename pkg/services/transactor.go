package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/search"
)

// Transactor runs fn inside a database transaction. *database.DB implements it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// refreshIndex queues a search index refresh for the project. Failures are
// logged, not returned.
func refreshIndex(ctx context.Context, indexer search.Indexer, logger *zap.Logger, projectID int64) {
	if err := indexer.Index(context.WithoutCancel(ctx), projectID); err != nil {
		logger.Error("Failed to queue search index refresh",
			zap.Int64("project_id", projectID),
			zap.Error(err))
	}
}
