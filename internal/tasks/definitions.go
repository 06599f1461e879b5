package tasks

import (
	"time"

	"barber_booking_echo/internal/store"
)

// Deps are the collaborators task handlers run against.
type Deps struct {
	Store           store.Store
	IntentRetention time.Duration
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	expire := NewExpireIntentsTask(deps.Store, deps.IntentRetention)
	r.Register(expire.TaskID(), expire.HandleExecution)
}
