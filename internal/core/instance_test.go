package core

import "testing"

func TestNumericValue(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"float64", float64(12.5), 12.5, true},
		{"int", int(7), 7, true},
		{"int64", int64(-3), -3, true},
		{"uint", uint(9), 9, true},
		{"bool true", true, 1, true},
		{"bool false", false, 0, true},
		{"numeric string", "42.5", 42.5, true},
		{"padded numeric string", " 10 ", 10, true},
		{"non-numeric string", "busy", 0, false},
		{"nil", nil, 0, false},
		{"slice", []int{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NumericValue(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("NumericValue(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("NumericValue(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
