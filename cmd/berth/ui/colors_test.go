package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestEnvTruthyValues(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "one", value: "1", want: true},
		{name: "true", value: "true", want: true},
		{name: "yes", value: "yes", want: true},
		{name: "on", value: "on", want: true},
		{name: "zero", value: "0", want: false},
		{name: "false", value: "false", want: false},
		{name: "empty", value: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("BERTH_TEST_TRUTHY", tc.value)
			if got := envTruthy("BERTH_TEST_TRUTHY"); got != tc.want {
				t.Fatalf("envTruthy() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConfigureNoColor(t *testing.T) {
	Configure(true)
	if got := lipgloss.ColorProfile(); got != termenv.Ascii {
		t.Fatalf("ColorProfile() = %v, want Ascii", got)
	}
}

func TestKeyValuesAlignment(t *testing.T) {
	Configure(true)
	got := KeyValues("  ", KV("state", "running"), KV("box", "alpine"))
	want := "  state: running\n  box:   alpine\n"
	if got != want {
		t.Fatalf("KeyValues() = %q, want %q", got, want)
	}
}

func TestStatePlainWhenUnstyled(t *testing.T) {
	Configure(true)
	for _, s := range []string{"running", "stopped", "absent", "unknown"} {
		if got := State(s); got != s {
			t.Fatalf("State(%q) = %q, want verbatim", s, got)
		}
	}
}
