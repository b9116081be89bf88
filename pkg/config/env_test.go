package config

import (
	"testing"
	"time"
)

func TestGetEnvString(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		want         string
	}{
		{"set variable", "custom", "default", "custom"},
		{"unset variable", "", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_STRING", tt.envValue)
			}
			if got := GetEnvString("TEST_STRING", tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{"valid integer", "42", 10, 42},
		{"negative integer", "-5", 10, -5},
		{"invalid integer", "not-a-number", 10, 10},
		{"empty value", "", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_INT", tt.envValue)
			}
			if got := GetEnvInt("TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true value", "true", false, true},
		{"numeric true", "1", false, true},
		{"false value", "false", true, false},
		{"numeric false", "0", true, false},
		{"invalid value", "yes", false, false},
		{"empty value", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			if got := GetEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "90s", time.Minute, 90 * time.Second},
		{"compound duration", "1h30m", time.Minute, 90 * time.Minute},
		{"invalid duration", "ninety", time.Minute, time.Minute},
		{"empty value", "", time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_DURATION", tt.envValue)
			}
			if got := GetEnvDuration("TEST_DURATION", tt.defaultValue); got != tt.want {
				t.Errorf("GetEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvStringList(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue []string
		want         []string
	}{
		{"simple list", "BTC,ETH,SOL", []string{"BTC"}, []string{"BTC", "ETH", "SOL"}},
		{"list with spaces", " BTC , ETH ", []string{"BTC"}, []string{"BTC", "ETH"}},
		{"empty entries dropped", "BTC,,ETH,", []string{"BTC"}, []string{"BTC", "ETH"}},
		{"only separators", ",,,", []string{"BTC"}, []string{"BTC"}},
		{"unset", "", []string{"BTC", "ETH"}, []string{"BTC", "ETH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_LIST", tt.envValue)
			}
			got := GetEnvStringList("TEST_LIST", tt.defaultValue)
			if len(got) != len(tt.want) {
				t.Fatalf("GetEnvStringList() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("GetEnvStringList()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
