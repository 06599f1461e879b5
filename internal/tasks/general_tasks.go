package tasks

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogInfoTaskDef encapsulates the log info task
type LogInfoTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

// HandleExecution handles logging information
func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	message, ok := args["message"].(string)
	if !ok {
		message = "No message provided"
	}
	log.Info().Str("task", t.TaskID()).Msg(message)

	return map[string]interface{}{
		"status":  "success",
		"message": message,
	}, nil
}

// LogInfoTask is the singleton instance of LogInfoTaskDef
var LogInfoTask = &LogInfoTaskDef{}
