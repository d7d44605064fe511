// internal/config/validate_test.go
package config

import "testing"

// helper returning a valid configuration to mutate
func valid() *Config {
	cfg := Default()
	return &cfg
}

// ---- tests ----

func TestValidate_DefaultsPass(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BareHostAccepted(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Target.URL = ` "panel.example/server?id=1" `

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TargetWithoutHostRejected(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Target.URL = "https://"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected target error, got nil")
	}
}

func TestValidate_IntervalBounds(t *testing.T) {
	cases := []struct {
		min, max float64
		ok       bool
	}{
		{1, 3, true},
		{2, 2, true},
		{3, 1, false},
		{0, 1, false},
		{-1, 1, false},
	}

	for _, tc := range cases {
		cfg := valid()
		cfg.Keeper.Schedule.MinMinutes = tc.min
		cfg.Keeper.Schedule.MaxMinutes = tc.max

		err := Validate(cfg)
		if tc.ok && err != nil {
			t.Fatalf("min=%v max=%v: unexpected error: %v", tc.min, tc.max, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("min=%v max=%v: expected error, got nil", tc.min, tc.max)
		}
	}
}

func TestValidate_UnknownLocatorKind(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Dispatch.Start = []LocatorConfig{{Kind: "xpath", Selector: "//button"}}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected locator error, got nil")
	}
}

func TestValidate_TextLocatorNeedsText(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Dispatch.Stop = []LocatorConfig{{Kind: "text", Selector: "button"}}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected locator error, got nil")
	}
}

func TestValidate_UnknownMethod(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Dispatch.Methods = []string{"direct", "telepathy"}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected method error, got nil")
	}
}

func TestValidate_StateBackend(t *testing.T) {
	cfg := valid()
	cfg.Keeper.State.Backend = "redis"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected backend error, got nil")
	}
}

func TestValidate_MirrorOptIn(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Mirror.Transport = "carrier-pigeon"

	// disabled mirror is not checked
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Keeper.Mirror.Endpoint = "127.0.0.1:502"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected transport error, got nil")
	}

	cfg.Keeper.Mirror.Transport = "modbus"
	cfg.Keeper.Mirror.Name = "srv-ü"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ASCII error, got nil")
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Target.URL = "panel.example"

	_ = Validate(cfg)

	if cfg.Keeper.Target.URL != "panel.example" {
		t.Fatalf("Validate mutated target url: %q", cfg.Keeper.Target.URL)
	}
	if len(cfg.Keeper.Dispatch.Start) != 0 {
		t.Fatalf("Validate filled locator tables")
	}
}

func TestNormalize_FillsTablesAndTruncates(t *testing.T) {
	cfg := valid()
	cfg.Keeper.Target.URL = "panel.example/server"
	cfg.Keeper.Mirror.Name = "a-very-long-server-name"
	cfg.Keeper.Telemetry.LogFormat = "TEXT"

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	if cfg.Keeper.Target.URL != "https://panel.example/server" {
		t.Fatalf("url not normalized: %q", cfg.Keeper.Target.URL)
	}
	if len(cfg.Keeper.Dispatch.Start) == 0 || cfg.Keeper.Dispatch.Start[0].Kind != "attribute" {
		t.Fatalf("start table not filled attribute-first: %+v", cfg.Keeper.Dispatch.Start)
	}
	if len(cfg.Keeper.Inference.Containers) == 0 {
		t.Fatalf("containers not filled")
	}
	if len(cfg.Keeper.Mirror.Name) != 16 {
		t.Fatalf("name not truncated: %q", cfg.Keeper.Mirror.Name)
	}
	if cfg.Keeper.Telemetry.LogFormat != "text" {
		t.Fatalf("log format not lowered: %q", cfg.Keeper.Telemetry.LogFormat)
	}
}
