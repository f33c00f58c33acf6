package domain

import (
	"fmt"
	"sort"
	"strconv"

	feeddomain "github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

// Kind tags the rule variant.
type Kind string

const (
	KindThreshold  Kind = "threshold"
	KindBoolean    Kind = "boolean"
	KindExpression Kind = "expression"
)

// Predicate tests a feed value. A value of the wrong kind does not hold.
type Predicate interface {
	Holds(v feeddomain.Value) bool
	String() string
}

// Threshold holds when a numeric value is at least Min.
type Threshold struct {
	Min float64
}

func (t Threshold) Holds(v feeddomain.Value) bool {
	n, ok := v.Number()
	return ok && n >= t.Min
}

func (t Threshold) String() string {
	return "value >= " + strconv.FormatFloat(t.Min, 'f', -1, 64)
}

// Equals holds when a boolean value equals Want.
type Equals struct {
	Want bool
}

func (e Equals) Holds(v feeddomain.Value) bool {
	b, ok := v.Bool()
	return ok && b == e.Want
}

func (e Equals) String() string {
	return "value == " + strconv.FormatBool(e.Want)
}

// Rule maps a market to a feed and a predicate.
type Rule struct {
	MarketID    uint64
	Feed        string
	Description string
	Kind        Kind
	Predicate   Predicate
}

// NewThresholdRule builds a `value >= min` rule.
func NewThresholdRule(marketID uint64, feed, description string, min float64) Rule {
	return Rule{MarketID: marketID, Feed: feed, Description: description, Kind: KindThreshold, Predicate: Threshold{Min: min}}
}

// NewBooleanRule builds a `value == want` rule.
func NewBooleanRule(marketID uint64, feed, description string, want bool) Rule {
	return Rule{MarketID: marketID, Feed: feed, Description: description, Kind: KindBoolean, Predicate: Equals{Want: want}}
}

// NewExpressionRule wraps a compiled predicate.
func NewExpressionRule(marketID uint64, feed, description string, p Predicate) Rule {
	return Rule{MarketID: marketID, Feed: feed, Description: description, Kind: KindExpression, Predicate: p}
}

func (r Rule) String() string {
	return fmt.Sprintf("market %d: %s %s (%s)", r.MarketID, r.Feed, r.Predicate, r.Description)
}

// Decide evaluates the rule on a reading. True is Yes, false is No, and the
// confidence passes through unchanged.
func Decide(rule Rule, reading feeddomain.Reading) Resolution {
	outcome := OutcomeNo
	if rule.Predicate != nil && rule.Predicate.Holds(reading.Value) {
		outcome = OutcomeYes
	}
	return Resolution{
		MarketID:   rule.MarketID,
		Outcome:    outcome,
		Confidence: reading.Confidence,
	}
}

// Table is the immutable market to rule mapping.
type Table struct {
	rules map[uint64]Rule
	ids   []uint64
}

// NewTable builds a table. Market ids must be unique.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{rules: make(map[uint64]Rule, len(rules))}
	for _, r := range rules {
		if _, dup := t.rules[r.MarketID]; dup {
			return nil, apperror.Validation(apperror.CodeInvalidRule, fmt.Sprintf("duplicate rule for market %d", r.MarketID))
		}
		if r.Feed == "" || r.Predicate == nil {
			return nil, apperror.Validation(apperror.CodeInvalidRule, fmt.Sprintf("incomplete rule for market %d", r.MarketID))
		}
		t.rules[r.MarketID] = r
		t.ids = append(t.ids, r.MarketID)
	}
	sort.Slice(t.ids, func(i, j int) bool { return t.ids[i] < t.ids[j] })
	return t, nil
}

// DefaultTable returns the reference rules for markets 0, 1 and 2.
func DefaultTable() *Table {
	t, err := NewTable(
		NewThresholdRule(0, "bitcoin", "Bitcoin hits $100,000", 100000),
		NewBooleanRule(1, "weather", "Rain in New York", true),
		NewThresholdRule(2, "ethereum", "Ethereum above $3000", 3000),
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the rule for a market.
func (t *Table) Lookup(marketID uint64) (Rule, bool) {
	r, ok := t.rules[marketID]
	return r, ok
}

// MarketIDs returns the covered markets in ascending order.
func (t *Table) MarketIDs() []uint64 {
	return append([]uint64(nil), t.ids...)
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.ids)
}

// Validate checks that every rule names a known feed and every listed
// market has a rule. Failures are ConfigurationMissing.
func (t *Table) Validate(hasFeed func(string) bool, markets []uint64) error {
	for _, id := range t.ids {
		if r := t.rules[id]; !hasFeed(r.Feed) {
			return apperror.New(apperror.CodeConfigurationMissing,
				apperror.WithContext(fmt.Sprintf("feed %q for market %d", r.Feed, id)))
		}
	}
	for _, id := range markets {
		if _, ok := t.rules[id]; !ok {
			return apperror.New(apperror.CodeConfigurationMissing,
				apperror.WithContext(fmt.Sprintf("rule for market %d", id)))
		}
	}
	return nil
}
