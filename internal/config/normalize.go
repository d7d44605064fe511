// internal/config/normalize.go
package config

import (
	"strings"

	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	k := &cfg.Keeper

	// Validate already proved the URL normalizes cleanly.
	if u, err := session.NormalizeURL(k.Target.URL, k.Target.URL); err == nil {
		k.Target.URL = u
	}

	// ------------------------------------------------------------
	// DEFAULT TABLES
	// ------------------------------------------------------------

	if len(k.Dispatch.Start) == 0 {
		k.Dispatch.Start = DefaultStartLocators()
	}
	if len(k.Dispatch.Stop) == 0 {
		k.Dispatch.Stop = DefaultStopLocators()
	}
	if len(k.Inference.StartVisible) == 0 {
		k.Inference.StartVisible = DefaultStartVisible()
	}
	if len(k.Inference.StopVisible) == 0 {
		k.Inference.StopVisible = DefaultStopVisible()
	}
	if len(k.Inference.Containers) == 0 {
		k.Inference.Containers = DefaultContainers()
	}
	if k.Target.LoginMarker == "" {
		k.Target.LoginMarker = "/login"
	}

	k.Telemetry.LogFormat = strings.ToLower(k.Telemetry.LogFormat)

	// ------------------------------------------------------------
	// MIRROR NAME
	// ------------------------------------------------------------

	// ASCII already validated; truncate to the register budget.
	if len(k.Mirror.Name) > status.NameMaxChars {
		k.Mirror.Name = k.Mirror.Name[:status.NameMaxChars]
	}
}
