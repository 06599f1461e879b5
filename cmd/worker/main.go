package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"barber_booking_echo/internal/config"
	"barber_booking_echo/internal/logger"
	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/services"
	"barber_booking_echo/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(cfg.Env)

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set, the worker reads scheduled tasks from Postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := services.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize infrastructure")
	}
	defer infra.Close()

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Deps{
		Store:           infra.Store,
		IntentRetention: cfg.IntentRetention,
	})

	if err := ensureRetentionTask(infra.DB, cfg.IntentRetention); err != nil {
		log.Error().Err(err).Msg("Failed to schedule intent retention task")
	}

	log.Info().Dur("interval", cfg.WorkerInterval).Strs("tasks", registry.Names()).Msg("Worker started")

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	// Run once at startup, then on every tick.
	processScheduledTasks(ctx, infra.DB, registry)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, infra.DB, registry)
		case <-ctx.Done():
			log.Info().Msg("Shutting down worker...")
			return
		}
	}
}

// ensureRetentionTask creates the recurring retention task unless one is
// already scheduled.
func ensureRetentionTask(db *gorm.DB, retention time.Duration) error {
	var existing models.ScheduledTask
	err := db.Where("task_name = ? AND status = ?", tasks.ExpireIntentsTaskID, models.ScheduledTaskStatusActive).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	task, err := tasks.RetentionTask(time.Now().Truncate(time.Hour).Add(time.Hour), retention)
	if err != nil {
		return err
	}
	if err := db.Create(task).Error; err != nil {
		return err
	}
	log.Info().Uint("task_id", task.ID).Time("due", task.Due).Msg("Scheduled intent retention task")
	return nil
}

func processScheduledTasks(ctx context.Context, db *gorm.DB, registry *tasks.Registry) {
	log.Debug().Msg("Checking for pending tasks...")

	var pendingTasks []models.ScheduledTask
	now := time.Now()
	if err := db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due asc").
		Find(&pendingTasks).Error; err != nil {
		log.Error().Err(err).Msg("Error fetching pending tasks")
		return
	}

	if len(pendingTasks) == 0 {
		log.Debug().Msg("No pending tasks found.")
		return
	}

	log.Info().Int("count", len(pendingTasks)).Msg("Found pending tasks")

	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return
		}
		executeTask(ctx, db, registry, task)
	}
}

func executeTask(ctx context.Context, db *gorm.DB, registry *tasks.Registry, task models.ScheduledTask) {
	tlog := log.With().Str("task", task.TaskName).Uint("task_id", task.ID).Logger()
	tlog.Info().Msg("Processing task")

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := registry.Get(task.TaskName)
	if !found {
		tlog.Error().Msg("Task handler not found, marking as failure")

		now := time.Now()
		db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		db.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = time.Now()
		var result map[string]interface{}
		result, err = handler(ctx, task.Arguments)
		runtimeMs := int(time.Since(startTime).Milliseconds())

		status := "success"
		resultData := result
		if err != nil {
			status = "failure"
			resultData = map[string]interface{}{"error": err.Error()}
			tlog.Error().Err(err).Int("attempt", attempt).Msg("Task failed")
		} else {
			tlog.Info().Int("attempt", attempt).Msg("Task completed successfully")
		}

		db.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Runtime:         runtimeMs,
			Status:          status,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          resultData,
		})

		if err == nil || ctx.Err() != nil {
			break
		}
	}

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	switch {
	case err != nil:
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		// advance past now so a worker that was down does not replay every missed run
		nextDue := task.NextDue(time.Now())
		if nextDue.After(task.Due) {
			taskUpdates["status"] = models.ScheduledTaskStatusActive
			taskUpdates["due"] = nextDue
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		taskUpdates["status"] = models.ScheduledTaskStatusDone
	}

	if err := db.Model(&task).Updates(taskUpdates).Error; err != nil {
		tlog.Error().Err(err).Msg("Failed to update task")
	}
}
