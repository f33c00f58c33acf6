// Package domain contains the feed reading types.
package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the type of a feed value.
type Kind int

const (
	KindNumber Kind = iota + 1
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is either a number or a boolean.
type Value struct {
	kind Kind
	num  float64
	b    bool
}

// NumberValue wraps a numeric reading.
func NumberValue(v float64) Value {
	return Value{kind: KindNumber, num: v}
}

// BoolValue wraps a boolean reading.
func BoolValue(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// Kind returns the value type. The zero Value has no kind.
func (v Value) Kind() Kind { return v.kind }

// Number returns the numeric value and whether v is a number.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Bool returns the boolean value and whether v is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Native returns float64, bool or nil.
func (v Value) Native() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<none>"
	}
}

// Source tells whether a reading came from the feed or its fallback.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Reading is one observation. Confidence is 0..100.
type Reading struct {
	Feed       string
	Value      Value
	Confidence int
	Source     Source
	ObservedAt time.Time
}

// IsFallback reports whether the reading is the predefined fallback.
func (r Reading) IsFallback() bool {
	return r.Source == SourceFallback
}

func (r Reading) String() string {
	return fmt.Sprintf("%s=%s (confidence %d, %s)", r.Feed, r.Value, r.Confidence, r.Source)
}

// ConfidencePolicy yields High when a numeric value exceeds Above, else
// Base. A zero Above or High disables the step.
type ConfidencePolicy struct {
	Base  int
	High  int
	Above float64
}

// For returns the confidence for v.
func (p ConfidencePolicy) For(v Value) int {
	if n, ok := v.Number(); ok && p.High > 0 && p.Above != 0 && n > p.Above {
		return clamp(p.High)
	}
	return clamp(p.Base)
}

func clamp(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
