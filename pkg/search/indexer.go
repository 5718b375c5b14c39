// Package search queues project documents for (re)indexing by the external
// search service.
package search

import (
	"context"

	"go.uber.org/zap"
)

// Indexer refreshes the search document of a project.
type Indexer interface {
	Index(ctx context.Context, projectID int64) error
	Remove(ctx context.Context, projectID int64) error
}

// Action is the operation requested for a project document.
type Action string

const (
	ActionIndex  Action = "index"
	ActionRemove Action = "remove"
)

// LogIndexer only logs refresh requests. It is used when no queue is configured.
type LogIndexer struct {
	logger *zap.Logger
}

// NewLogIndexer creates an indexer that logs requests at DEBUG.
func NewLogIndexer(logger *zap.Logger) *LogIndexer {
	return &LogIndexer{logger: logger.Named("search")}
}

func (l *LogIndexer) Index(_ context.Context, projectID int64) error {
	l.logger.Debug("Search queue disabled, skipping index", zap.Int64("project_id", projectID))
	return nil
}

func (l *LogIndexer) Remove(_ context.Context, projectID int64) error {
	l.logger.Debug("Search queue disabled, skipping removal", zap.Int64("project_id", projectID))
	return nil
}

var (
	_ Indexer = (*LogIndexer)(nil)
	_ Indexer = (*RedisQueue)(nil)
)
