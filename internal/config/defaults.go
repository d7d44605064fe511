// internal/config/defaults.go
package config

// DefaultTargetURL is used when no target is configured.
const DefaultTargetURL = "https://magmanode.com/server?id=770999"

// Default returns a configuration with every field populated.
func Default() Config {
	return Config{
		Keeper: KeeperConfig{
			Target: TargetConfig{
				URL:         DefaultTargetURL,
				LoginMarker: "/login",
			},
			Browser: BrowserConfig{
				Bin:               "",
				Headless:          boolPtr(true),
				Stealth:           boolPtr(true),
				WindowWidth:       1366,
				WindowHeight:      768,
				NavigateTimeoutMs: 30000,
				ProbeTimeoutMs:    2000,
			},
			Schedule: ScheduleConfig{
				MinMinutes:       1,
				MaxMinutes:       3,
				AutoCheck:        boolPtr(true),
				CooldownMs:       15000,
				FailureBackoffMs: 10000,
				ErrorBackoffMs:   30000,
				MaxBackoffMs:     300000,
				IdlePollMs:       10000,
				MonitorMs:        10000,
			},
			Dispatch: DispatchConfig{
				WaitTimeoutMs: 2000,
			},
			State: StateConfig{
				Backend:         "file",
				Path:            "server_status.json",
				RestoreSettings: boolPtr(true),
			},
			API: APIConfig{
				Listen:              ":5000",
				ManualRatePerMinute: 6,
				ManualBurst:         2,
				RequestTimeoutMs:    60000,
			},
			Mirror: MirrorConfig{
				Transport: "modbus",
				UnitID:    1,
				TimeoutMs: 1000,
			},
			Notify: NotifyConfig{
				Subject: "keeper",
			},
			Telemetry: TelemetryConfig{
				LogLevel:  "info",
				LogFormat: "json",
			},
		},
	}
}

func boolPtr(v bool) *bool { return &v }

// ---- LOCATOR TABLES ----

// DefaultStartLocators is the start strategy table: attribute first,
// then class, then text.
func DefaultStartLocators() []LocatorConfig {
	return []LocatorConfig{
		{Kind: "attribute", Selector: `button[data-action="start"]`},
		{Kind: "class", Selector: `button.bg-green-600`},
		{Kind: "class", Selector: `button[class*="bg-green"][class*="text-white"]`},
		{Kind: "text", Selector: "button", Text: "START"},
		{Kind: "text", Selector: "button", Text: "شروع"},
	}
}

// DefaultStopLocators is the stop strategy table.
func DefaultStopLocators() []LocatorConfig {
	return []LocatorConfig{
		{Kind: "attribute", Selector: `button[data-action="stop"]`},
		{Kind: "class", Selector: `button.bg-red-600`},
		{Kind: "class", Selector: `button[class*="bg-red-600"]`},
		{Kind: "text", Selector: "button", Text: "STOP"},
	}
}

// DefaultStartVisible are the locators probed for start visibility.
func DefaultStartVisible() []LocatorConfig {
	return []LocatorConfig{
		{Kind: "attribute", Selector: `button[data-action="start"]`},
		{Kind: "class", Selector: `button.bg-green-600`},
		{Kind: "class", Selector: `button[class*="bg-green-600"]`},
	}
}

// DefaultStopVisible are the locators probed for stop visibility.
func DefaultStopVisible() []LocatorConfig {
	return []LocatorConfig{
		{Kind: "attribute", Selector: `button[data-action="stop"]`},
		{Kind: "class", Selector: `button.bg-red-600`},
		{Kind: "class", Selector: `button[class*="bg-red-600"]`},
	}
}

// DefaultContainers are the status text containers in priority order.
func DefaultContainers() []string {
	return []string{
		`span[data-server-status]`,
		`span.font-medium[data-server-status]`,
		`.server-status`,
		`.status-indicator`,
		`span.font-medium`,
	}
}
