// Package staticfeed serves a fixed reading.
package staticfeed

import (
	"context"
	"time"

	"github.com/fd1az/oracle-resolver/business/feed/app"
	"github.com/fd1az/oracle-resolver/business/feed/domain"
)

var _ app.Provider = (*Provider)(nil)

// Provider always returns the same value.
type Provider struct {
	name       string
	value      domain.Value
	confidence int
}

// NewProvider creates a static feed.
func NewProvider(name string, value domain.Value, confidence int) *Provider {
	return &Provider{name: name, value: value, confidence: confidence}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Read(context.Context) (domain.Reading, error) {
	return domain.Reading{Value: p.value, Confidence: p.confidence, ObservedAt: time.Now()}, nil
}
