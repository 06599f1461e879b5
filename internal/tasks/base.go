package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"barber_booking_echo/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically.
// A recurring task must carry a valid RRULE.
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	if taskType == models.ScheduledTaskTypeRecurring {
		if recurringInterval == nil || *recurringInterval == "" {
			return nil, fmt.Errorf("recurring task %s needs a recurring interval", taskName)
		}
		if _, err := rrule.StrToRRule(*recurringInterval); err != nil {
			return nil, fmt.Errorf("invalid recurring interval %q: %w", *recurringInterval, err)
		}
	}
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// RetentionTask builds the recurring intent retention task, hourly by default.
func RetentionTask(start time.Time, olderThan time.Duration) (*models.ScheduledTask, error) {
	rule := "FREQ=HOURLY;INTERVAL=1"
	return BuildScheduledTask(ExpireIntentsTaskID, map[string]interface{}{
		"older_than_hours": olderThan.Hours(),
		"limit":            defaultExpireLimit,
	}, start, &rule, models.ScheduledTaskTypeRecurring, 3)
}
