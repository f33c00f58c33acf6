package domain

import "testing"

func TestConfidencePolicy_For(t *testing.T) {
	bitcoin := ConfidencePolicy{Base: 85, High: 95, Above: 50000}

	tests := []struct {
		name   string
		policy ConfidencePolicy
		value  Value
		want   int
	}{
		{name: "above step", policy: bitcoin, value: NumberValue(67000), want: 95},
		{name: "at step is base", policy: bitcoin, value: NumberValue(50000), want: 85},
		{name: "below step", policy: bitcoin, value: NumberValue(42000), want: 85},
		{name: "flat", policy: ConfidencePolicy{Base: 92}, value: NumberValue(1e9), want: 92},
		{name: "bool uses base", policy: bitcoin, value: BoolValue(true), want: 85},
		{name: "clamped", policy: ConfidencePolicy{Base: 140}, value: BoolValue(false), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.For(tt.value); got != tt.want {
				t.Errorf("For(%s) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	n := NumberValue(3000.5)
	if v, ok := n.Number(); !ok || v != 3000.5 {
		t.Errorf("Number() = %v, %v", v, ok)
	}
	if _, ok := n.Bool(); ok {
		t.Error("number must not report as bool")
	}
	if n.String() != "3000.5" {
		t.Errorf("String() = %q", n.String())
	}

	b := BoolValue(true)
	if v, ok := b.Bool(); !ok || !v {
		t.Errorf("Bool() = %v, %v", v, ok)
	}
	if b.Native() != true {
		t.Errorf("Native() = %v", b.Native())
	}

	var zero Value
	if zero.Kind() != 0 || zero.Native() != nil {
		t.Error("zero value must have no kind")
	}
}
