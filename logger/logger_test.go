package logger

import "testing"

func TestSetLevel(t *testing.T) {
	cases := []struct {
		level string
		want  bool
	}{
		{"debug", true},
		{"DEBUG", true},
		{" debug ", true},
		{"info", false},
		{"", false},
		{"trace", false},
	}
	for _, tc := range cases {
		SetLevel(tc.level)
		if got := IsDebugEnabled(); got != tc.want {
			t.Fatalf("SetLevel(%q): IsDebugEnabled() = %v, want %v", tc.level, got, tc.want)
		}
	}
}
