package schedule

import (
	"context"
	"log/slog"
	"time"
)

type Task interface {
	Run(ctx context.Context) error
	Name() string
}

// Run 执行任务并记录耗时
func Run(ctx context.Context, task Task) error {
	start := time.Now()
	slog.Info("task started", "task", task.Name())
	err := task.Run(ctx)
	if err != nil {
		slog.Error("task failed", "task", task.Name(), "duration", time.Since(start), "error", err)
		return err
	}
	slog.Info("task finished", "task", task.Name(), "duration", time.Since(start))
	return nil
}
