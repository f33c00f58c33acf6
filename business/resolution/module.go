// Package resolution implements the rule table bounded context.
package resolution

import (
	"context"

	resolutionDI "github.com/fd1az/oracle-resolver/business/resolution/di"
	"github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolution/infra/rulefile"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/monolith"
)

// Module implements the resolution bounded context.
type Module struct{}

// RegisterServices loads the rule table: the rules file when configured,
// otherwise the reference table. A bad rules file fails registration so
// polling never starts.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := c.Get("config").(*config.Config)

	table, err := LoadTable(cfg.Resolver.RulesFile)
	if err != nil {
		return err
	}

	di.RegisterToken(c, resolutionDI.RuleTable, func(di.ServiceRegistry) *domain.Table {
		return table
	})
	return nil
}

// Startup logs the loaded rules.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	table := resolutionDI.GetRuleTable(mono.Services())
	for _, id := range table.MarketIDs() {
		rule, _ := table.Lookup(id)
		mono.Logger().Debug(ctx, "resolution rule", "rule", rule.String())
	}
	mono.Logger().Info(ctx, "resolution module started", "rules", table.Len())
	return nil
}

// LoadTable returns the rules from path, or the default table for "".
func LoadTable(path string) (*domain.Table, error) {
	if path == "" {
		return domain.DefaultTable(), nil
	}
	return rulefile.Load(path)
}
