// Package rulefile loads a resolution rule table from YAML.
package rulefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

// File is the YAML document.
//
//	rules:
//	  - market: 0
//	    feed: bitcoin
//	    description: Bitcoin hits $100,000
//	    threshold: 100000
//	  - market: 1
//	    feed: weather
//	    equals: true
//	  - market: 3
//	    feed: gold
//	    expression: "value >= 2500.0 && value < 3000.0"
type File struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule. Exactly one of Threshold, Equals or Expression is set.
type RuleSpec struct {
	Market      uint64   `yaml:"market"`
	Feed        string   `yaml:"feed"`
	Description string   `yaml:"description"`
	Threshold   *float64 `yaml:"threshold"`
	Equals      *bool    `yaml:"equals"`
	Expression  string   `yaml:"expression"`
}

// Load reads and compiles the rule file at path.
func Load(path string) (*domain.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationMissing,
			apperror.WithContext("rules file "+path), apperror.WithCause(err))
	}
	return Parse(data)
}

// Parse decodes and compiles a rule document. Unknown keys are rejected.
func Parse(data []byte) (*domain.Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperror.New(apperror.CodeInvalidRule, apperror.WithContext("decode rules"), apperror.WithCause(err))
	}
	if len(f.Rules) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("rules file has no rules"))
	}

	rules := make([]domain.Rule, 0, len(f.Rules))
	for _, spec := range f.Rules {
		r, err := spec.build()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return domain.NewTable(rules...)
}

func (s RuleSpec) build() (domain.Rule, error) {
	set := 0
	if s.Threshold != nil {
		set++
	}
	if s.Equals != nil {
		set++
	}
	if s.Expression != "" {
		set++
	}
	if set != 1 {
		return domain.Rule{}, apperror.Validation(apperror.CodeInvalidRule,
			fmt.Sprintf("market %d: exactly one of threshold, equals or expression is required", s.Market))
	}

	switch {
	case s.Threshold != nil:
		return domain.NewThresholdRule(s.Market, s.Feed, s.Description, *s.Threshold), nil
	case s.Equals != nil:
		return domain.NewBooleanRule(s.Market, s.Feed, s.Description, *s.Equals), nil
	default:
		p, err := CompileExpression(s.Expression)
		if err != nil {
			return domain.Rule{}, apperror.New(apperror.CodeInvalidRule,
				apperror.WithContext(fmt.Sprintf("market %d", s.Market)), apperror.WithCause(err))
		}
		return domain.NewExpressionRule(s.Market, s.Feed, s.Description, p), nil
	}
}
