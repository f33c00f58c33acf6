// Package betting implements the betting client context used by marketctl.
package betting

import (
	"context"

	"github.com/fd1az/oracle-resolver/business/betting/app"
	bettingDI "github.com/fd1az/oracle-resolver/business/betting/di"
	chainDI "github.com/fd1az/oracle-resolver/business/chain/di"
	marketviewDI "github.com/fd1az/oracle-resolver/business/marketview/di"
	"github.com/fd1az/oracle-resolver/internal/asset"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/monolith"
)

// Module implements the betting bounded context. It depends on the chain
// and marketview modules.
type Module struct{}

// RegisterServices registers the betting client.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, bettingDI.Client, func(sr di.ServiceRegistry) *app.Client {
		log := sr.Get("logger").(logger.LoggerInterface)
		token := sr.Get("settlementToken").(*asset.Token)

		return app.NewClient(chainDI.GetGateway(sr), token, marketviewDI.GetMarketService(sr), log)
	})
	return nil
}

// Startup logs the signer's balance when a key is loaded.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	if !chainDI.GetGateway(mono.Services()).CanSign() {
		return nil
	}
	balance, err := bettingDI.GetClient(mono.Services()).Balance(ctx)
	if err != nil {
		mono.Logger().Warn(ctx, "balance unavailable", "error", err)
		return nil
	}
	mono.Logger().Info(ctx, "betting module started", "balance", balance.String())
	return nil
}
