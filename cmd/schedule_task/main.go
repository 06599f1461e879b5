package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"barber_booking_echo/internal/logger"
	"barber_booking_echo/internal/models"
	"barber_booking_echo/internal/services"
	"barber_booking_echo/internal/tasks"
)

// scheduleEnv is the subset of the process environment this command needs.
// The full server Config also requires gateway credentials.
type scheduleEnv struct {
	Env         string `envconfig:"APP_ENV" default:"development"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04 or RFC3339)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE recurrence, e.g. FREQ=HOURLY;INTERVAL=1 (recurring tasks only)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts per run")

	flag.Parse()

	if *taskName == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -due <YYYY-MM-DD HH:MM> [-arguments <json>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment")
	}
	var env scheduleEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("Invalid environment")
	}
	logger.Init(env.Env)

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatal().Err(err).Msg("Invalid JSON arguments")
	}

	due, err := time.Parse(time.RFC3339, *dueStr)
	if err != nil {
		due, err = time.ParseInLocation("2006-01-02 15:04", *dueStr, time.Local)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid due date format, use '2006-01-02 15:04' (local) or RFC3339")
		}
	}

	var recurringPtr *string
	if *recurring != "" {
		recurringPtr = recurring
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, models.ScheduledTaskType(*taskType), *maxAttempt)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid task")
	}

	db, err := services.InitDB(env.DatabaseURL, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect database")
	}

	if err := db.Create(task).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to create task")
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}
