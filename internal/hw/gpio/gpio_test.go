package gpio

import "testing"

func TestActive(t *testing.T) {
	cases := []struct {
		name      string
		level     Level
		activeLow bool
		want      bool
	}{
		{"high_active_high", High, false, true},
		{"low_active_high", Low, false, false},
		{"low_active_low", Low, true, true},
		{"high_active_low", High, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Active(tc.level, tc.activeLow); got != tc.want {
				t.Errorf("Active(%v, %v) = %v, want %v", tc.level, tc.activeLow, got, tc.want)
			}
		})
	}
}
