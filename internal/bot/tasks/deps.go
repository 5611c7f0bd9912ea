// Package tasks holds the jobs the scheduler runs in serve mode.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/botfriend/internal/database"
)

// PassRunner runs scheduling passes over every loaded bot.
type PassRunner interface {
	PostPass(ctx context.Context) error
	RepairPass(ctx context.Context) error
	AdvancePass(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Runner PassRunner
}
