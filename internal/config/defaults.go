package config

const (
	defaultStateDir              = "~/.local/share/hookd"
	defaultLogDir                = "~/.local/share/hookd/logs"
	defaultIdleTimeoutSeconds    = 300
	defaultRequestTimeoutSeconds = 10
	defaultShutdownGraceSeconds  = 5
	defaultLogLevel              = "info"
	defaultLogFormat             = "console"
	defaultLogBufferSize         = 1024
	defaultAuditRetentionDays    = 14
)

// Default returns a Config populated with repository defaults, including the
// built-in handler table.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Daemon: Daemon{
			IdleTimeoutSeconds:    defaultIdleTimeoutSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			ShutdownGraceSeconds:  defaultShutdownGraceSeconds,
			Exclusive:             true,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			BufferSize: defaultLogBufferSize,
		},
		Audit: Audit{
			Enabled:       true,
			RetentionDays: defaultAuditRetentionDays,
		},
		Handlers: DefaultHandlerTable(),
	}
}

// DefaultHandlerTable lists the built-in rules wired when the config file
// does not customize the handler table.
func DefaultHandlerTable() []HandlerEntry {
	return []HandlerEntry{
		{Event: "PreToolUse", ID: "block-destructive", Enabled: true, Priority: 10},
		{Event: "PreToolUse", ID: "protect-sensitive-paths", Enabled: true, Priority: 20},
		{Event: "PreToolUse", ID: "unattended-gate", Enabled: true, Priority: 30},
		{Event: "PreToolUse", ID: "spelling-advisory", Enabled: false, Priority: 60},
	}
}
