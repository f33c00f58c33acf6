// Package app contains the feed service and its provider port.
package app

import (
	"context"

	"github.com/fd1az/oracle-resolver/business/feed/domain"
)

// Provider reads one named feed. Read may fail; the Service turns failures
// into the feed's fallback reading.
type Provider interface {
	Name() string
	Read(ctx context.Context) (domain.Reading, error)
}
