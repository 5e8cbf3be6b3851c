package extension

import "time"

// Config holds the token ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tokenledger" or "tokenledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SchedulerInterval is how often the background worker sweeps for due
	// scheduled tasks (default: 30s).
	SchedulerInterval time.Duration `json:"scheduler_interval" mapstructure:"scheduler_interval" yaml:"scheduler_interval"`

	// AgentOwner is the textual principal that owns the task registry.
	// Scheduled ledger operations execute under this identity.
	AgentOwner string `json:"agent_owner" mapstructure:"agent_owner" yaml:"agent_owner"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchedulerInterval: 30 * time.Second,
	}
}
