package tasks

import (
	"context"
	"fmt"
)

// newPostPassTask runs one scheduling pass over every bot.
func newPostPassTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		if err := deps.Runner.PostPass(ctx); err != nil {
			return fmt.Errorf("post pass failed: %w", err)
		}
		return nil
	}
}

// newSchedulePassTask lets advance-scheduling bots queue their timed posts.
func newSchedulePassTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		if err := deps.Runner.AdvancePass(ctx); err != nil {
			return fmt.Errorf("schedule pass failed: %w", err)
		}
		return nil
	}
}

// newRepublishTask retries failed publications of every bot.
func newRepublishTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		if err := deps.Runner.RepairPass(ctx); err != nil {
			return fmt.Errorf("republish pass failed: %w", err)
		}
		return nil
	}
}
