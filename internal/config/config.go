// internal/config/config.go
package config

type Config struct {
	Keeper KeeperConfig `yaml:"keeper"`
}

type KeeperConfig struct {
	Target      TargetConfig      `yaml:"target"`
	Browser     BrowserConfig     `yaml:"browser"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Inference   InferenceConfig   `yaml:"inference"`
	State       StateConfig       `yaml:"state"`
	API         APIConfig         `yaml:"api"`
	Mirror      MirrorConfig      `yaml:"mirror"`
	Notify      NotifyConfig      `yaml:"notify"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ---- TARGET ----

type TargetConfig struct {
	URL string `yaml:"url"`

	// Path fragment that marks an authentication redirect.
	LoginMarker string `yaml:"login_marker"`
}

// ---- BROWSER ----

type BrowserConfig struct {
	// Attach to a running DevTools endpoint instead of launching.
	ControlURL string `yaml:"control_url"`
	Bin        string `yaml:"bin"`
	Headless   *bool  `yaml:"headless"`
	UserAgent  string `yaml:"user_agent"`
	Stealth    *bool  `yaml:"stealth"`

	WindowWidth  int `yaml:"window_width"`
	WindowHeight int `yaml:"window_height"`

	NavigateTimeoutMs int `yaml:"navigate_timeout_ms"`
	ProbeTimeoutMs    int `yaml:"probe_timeout_ms"`
}

// ---- CREDENTIALS ----

type CredentialsConfig struct {
	// Raw JSON cookie export (array or single object).
	CookiesJSON string `yaml:"cookies_json"`
	// File holding the same export. Ignored when CookiesJSON is set.
	CookiesFile string `yaml:"cookies_file"`
}

// ---- SCHEDULE ----

type ScheduleConfig struct {
	MinMinutes float64 `yaml:"min_minutes"`
	MaxMinutes float64 `yaml:"max_minutes"`
	AutoCheck  *bool   `yaml:"auto_check"`

	CooldownMs       int `yaml:"cooldown_ms"`
	FailureBackoffMs int `yaml:"failure_backoff_ms"`
	ErrorBackoffMs   int `yaml:"error_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
	IdlePollMs       int `yaml:"idle_poll_ms"`
	MonitorMs        int `yaml:"monitor_interval_ms"`

	// Stop after this many successful auto dispatches. Zero = unbounded.
	MaxSuccessfulClicks int `yaml:"max_successful_clicks"`
}

// ---- DISPATCH ----

type LocatorConfig struct {
	Kind     string `yaml:"kind"`
	Selector string `yaml:"selector"`
	Text     string `yaml:"text"`
}

type DispatchConfig struct {
	WaitTimeoutMs int             `yaml:"wait_timeout_ms"`
	Methods       []string        `yaml:"methods"`
	Start         []LocatorConfig `yaml:"start"`
	Stop          []LocatorConfig `yaml:"stop"`
}

// ---- INFERENCE ----

type InferenceConfig struct {
	// CSS selectors of status text containers, in priority order.
	Containers []string `yaml:"containers"`
	// Locators probed for control visibility.
	StartVisible []LocatorConfig `yaml:"start_visible"`
	StopVisible  []LocatorConfig `yaml:"stop_visible"`
}

// ---- STATE ----

type StateConfig struct {
	Backend         string `yaml:"backend"` // file | sqlite
	Path            string `yaml:"path"`
	RestoreSettings *bool  `yaml:"restore_settings"`
}

// ---- API ----

type APIConfig struct {
	Listen              string `yaml:"listen"`
	ManualRatePerMinute int    `yaml:"manual_rate_per_minute"`
	ManualBurst         int    `yaml:"manual_burst"`
	RequestTimeoutMs    int    `yaml:"request_timeout_ms"`
}

// ---- MIRROR ----

type MirrorConfig struct {
	Transport string `yaml:"transport"` // modbus | ingest
	Endpoint  string `yaml:"endpoint"`  // empty = disabled
	UnitID    uint8  `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	MemoryID  uint16 `yaml:"memory_id"` // ingest only
	Name      string `yaml:"name"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- NOTIFY ----

type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"` // empty = disabled
	Subject string `yaml:"subject"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json | text
	Tracing   string `yaml:"tracing"`    // "" | stdout
}
