// Package wireevents builds the Event Bus names the Local Agent
// Orchestrator and the Global Orchestrator agree on. These names are
// wire-visible: different processes only ever recognise each other through
// them, so both orchestrator builders construct them the same way.
package wireevents

import "fmt"

// Alive is "<app>/<agent>/alive": an agent announcing it is ready to
// receive the global startup release.
func Alive(app, agent string) string {
	return fmt.Sprintf("%s/%s/alive", app, agent)
}

// Startup is "<app>/startup": the primary's global startup release.
func Startup(app string) string {
	return fmt.Sprintf("%s/startup", app)
}

// StartupCompleted is "<app>/<agent>/startup_completed": an agent
// announcing its activities have finished starting.
func StartupCompleted(app, agent string) string {
	return fmt.Sprintf("%s/%s/startup_completed", app, agent)
}

// Step is "<app>/<activity>/step": the release for one activity's step in
// the current cycle.
func Step(app, activity string) string {
	return fmt.Sprintf("%s/%s/step", app, activity)
}

// StepCompleted is "<app>/<activity>/step_completed": an activity
// announcing its step finished this cycle.
func StepCompleted(app, activity string) string {
	return fmt.Sprintf("%s/%s/step_completed", app, activity)
}

// Shutdown is "<app>/shutdown": the primary's termination broadcast.
func Shutdown(app string) string {
	return fmt.Sprintf("%s/shutdown", app)
}

// ShutdownCompleted is "<app>/<agent>/shutdown_completed": an agent
// announcing it has stopped all its activities.
func ShutdownCompleted(app, agent string) string {
	return fmt.Sprintf("%s/%s/shutdown_completed", app, agent)
}

// ExternalShutdown is the well-known external termination signal name,
// fixed regardless of app: "qorix_orch_shutdown_event".
const ExternalShutdown = "qorix_orch_shutdown_event"
