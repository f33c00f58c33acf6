// Package marketview implements the read-only market aggregation context.
package marketview

import (
	"context"

	chainDI "github.com/fd1az/oracle-resolver/business/chain/di"
	"github.com/fd1az/oracle-resolver/business/marketview/app"
	marketviewDI "github.com/fd1az/oracle-resolver/business/marketview/di"
	"github.com/fd1az/oracle-resolver/internal/asset"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/monolith"
)

// Module implements the market view bounded context.
type Module struct{}

// RegisterServices registers the market service.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketviewDI.MarketService, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		token := sr.Get("settlementToken").(*asset.Token)

		svc, err := app.NewService(chainDI.GetGateway(sr), token, cfg.API.CacheTTL, log)
		if err != nil {
			panic("failed to create market service: " + err.Error())
		}
		return svc
	})
	return nil
}

// Startup reads the market count once so a wrong contract address shows up
// in the logs early. Failure is not fatal.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := marketviewDI.GetMarketService(mono.Services())

	markets, err := svc.List(ctx)
	if err != nil {
		log.Warn(ctx, "market listing unavailable", "error", err)
		return nil
	}
	log.Info(ctx, "marketview module started", "markets", len(markets), "token", svc.Token().Symbol())
	return nil
}
