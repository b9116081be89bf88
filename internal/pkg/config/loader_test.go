package config

import (
	"fmt"
	"testing"
	"time"
)

func TestLoadEnvWithFallback(t *testing.T) {
	rejectAll := func(string) error { return fmt.Errorf("rejected") }

	tests := []struct {
		name         string
		envValue     string
		validator    func(string) error
		wantValue    string
		wantFallback bool
	}{
		{"unset uses default silently", "", rejectAll, "default", false},
		{"valid value accepted", "custom", nil, "custom", false},
		{"invalid value falls back", "custom", rejectAll, "default", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_FALLBACK", tt.envValue)
			}
			result := LoadEnvWithFallback("TEST_FALLBACK", "default", tt.validator)
			if result.Value.(string) != tt.wantValue {
				t.Errorf("Value = %v, want %v", result.Value, tt.wantValue)
			}
			if result.FallbackApplied != tt.wantFallback {
				t.Errorf("FallbackApplied = %v, want %v", result.FallbackApplied, tt.wantFallback)
			}
			if tt.wantFallback && len(result.Warnings) == 0 {
				t.Error("expected a warning when fallback applied")
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	positive := func(d time.Duration) error {
		if d <= 0 {
			return fmt.Errorf("must be positive")
		}
		return nil
	}

	tests := []struct {
		name         string
		envValue     string
		wantValue    time.Duration
		wantFallback bool
	}{
		{"valid duration", "45s", 45 * time.Second, false},
		{"unparsable", "soon", time.Minute, true},
		{"fails validation", "-10s", time.Minute, true},
		{"unset", "", time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_DUR", tt.envValue)
			}
			result := LoadEnvDuration("TEST_DUR", time.Minute, positive)
			if result.Value.(time.Duration) != tt.wantValue {
				t.Errorf("Value = %v, want %v", result.Value, tt.wantValue)
			}
			if result.FallbackApplied != tt.wantFallback {
				t.Errorf("FallbackApplied = %v, want %v", result.FallbackApplied, tt.wantFallback)
			}
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	inRange := func(v int) error {
		if v < 1 || v > 100 {
			return fmt.Errorf("out of range")
		}
		return nil
	}

	tests := []struct {
		name         string
		envValue     string
		wantValue    int
		wantFallback bool
	}{
		{"valid int", "42", 42, false},
		{"unparsable", "many", 7, true},
		{"fails validation", "500", 7, true},
		{"unset", "", 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_INT", tt.envValue)
			}
			result := LoadEnvInt("TEST_INT", 7, inRange)
			if result.Value.(int) != tt.wantValue {
				t.Errorf("Value = %v, want %v", result.Value, tt.wantValue)
			}
			if result.FallbackApplied != tt.wantFallback {
				t.Errorf("FallbackApplied = %v, want %v", result.FallbackApplied, tt.wantFallback)
			}
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		wantValue    bool
		wantFallback bool
	}{
		{"true", "true", false, true, false},
		{"false", "0", true, false, false},
		{"invalid", "maybe", true, true, true},
		{"unset", "", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			result := LoadEnvBool("TEST_BOOL", tt.defaultValue)
			if result.Value.(bool) != tt.wantValue {
				t.Errorf("Value = %v, want %v", result.Value, tt.wantValue)
			}
			if result.FallbackApplied != tt.wantFallback {
				t.Errorf("FallbackApplied = %v, want %v", result.FallbackApplied, tt.wantFallback)
			}
		})
	}
}
