// Package config loads the botfriend application configuration and finds
// the bots configured under the bots directory.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration marks every configuration failure. The process refuses to
// start when it sees one.
var ErrConfiguration = errors.New("configuration error")

// Config is the application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	BotsDir   string          `mapstructure:"bots_dir"  validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	// Path is relative to the working directory. ":memory:" is accepted.
	Path string `mapstructure:"path" validate:"required"`
}

// SchedulerConfig lists the tasks the serve command schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`

	// RunOnStart names a task to run once as soon as serve starts.
	RunOnStart string `mapstructure:"run_on_start"`
}

// TaskConfig is one scheduled task. Schedule is a cron expression with
// a seconds field.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// TelegramConfig configures the operator console.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"         validate:"required_if=Enabled true"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required_if=Enabled true"`
}

// GeminiConfig holds the shared credentials for the gemini generator.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=0,max=1m"`
}
