package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDatabasePath = "botfriend.sqlite"
	DefaultBotsDir      = "./bots"

	DefaultPostPassSchedule       = "0 */5 * * * *"
	DefaultRepublishSchedule      = "0 0 * * * *"
	DefaultSchedulePassSchedule   = "0 30 * * * *"
	DefaultSQLMaintenanceSchedule = "0 0 4 * * *"

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 1.0
	DefaultGeminiTimeout     = 2 * time.Minute
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 * time.Second

	// DefaultsFile is the bot config merged underneath every bot.yaml.
	DefaultsFile = "default.yaml"
	// BotFile marks a directory as a bot.
	BotFile = "bot.yaml"
)

var defaults = map[string]any{
	"log.level": DefaultLogLevel,
	"log.json":  false,

	"database.path": DefaultDatabasePath,
	"bots_dir":      DefaultBotsDir,

	"scheduler.run_on_start":                   "",
	"scheduler.tasks.post_pass.enabled":        true,
	"scheduler.tasks.post_pass.schedule":       DefaultPostPassSchedule,
	"scheduler.tasks.republish.enabled":        true,
	"scheduler.tasks.republish.schedule":       DefaultRepublishSchedule,
	"scheduler.tasks.schedule_pass.enabled":    true,
	"scheduler.tasks.schedule_pass.schedule":   DefaultSchedulePassSchedule,
	"scheduler.tasks.sql_maintenance.enabled":  false,
	"scheduler.tasks.sql_maintenance.schedule": DefaultSQLMaintenanceSchedule,

	"telegram.enabled":       false,
	"telegram.token":         "",
	"telegram.admin_user_id": 0,

	"gemini.api_key":     "",
	"gemini.model":       DefaultGeminiModel,
	"gemini.temperature": DefaultGeminiTemperature,
	"gemini.timeout":     DefaultGeminiTimeout,
	"gemini.max_retries": DefaultGeminiMaxRetries,
	"gemini.retry_delay": DefaultGeminiRetryDelay,
}
