// Package randomfeed is a mock boolean condition feed.
package randomfeed

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fd1az/oracle-resolver/business/feed/app"
	"github.com/fd1az/oracle-resolver/business/feed/domain"
)

var _ app.Provider = (*Provider)(nil)

// Provider reports true with a fixed probability.
type Provider struct {
	name        string
	probability float64
	confidence  int

	mu   sync.Mutex
	rand func() float64
}

// NewProvider creates a feed that is true with probability p.
func NewProvider(name string, p float64, confidence int) *Provider {
	return &Provider{name: name, probability: p, confidence: confidence, rand: rand.Float64}
}

// WithSource replaces the random source, for tests.
func (p *Provider) WithSource(src func() float64) *Provider {
	p.mu.Lock()
	p.rand = src
	p.mu.Unlock()
	return p
}

// Name returns the feed name.
func (p *Provider) Name() string {
	return p.name
}

// Read draws one sample.
func (p *Provider) Read(context.Context) (domain.Reading, error) {
	p.mu.Lock()
	draw := p.rand()
	p.mu.Unlock()

	return domain.Reading{
		Value:      domain.BoolValue(draw < p.probability),
		Confidence: p.confidence,
		ObservedAt: time.Now(),
	}, nil
}
