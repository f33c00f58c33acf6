// Package chain implements the chain bounded context: contract reads and
// signed writes against the prediction market deployment.
package chain

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/oracle-resolver/business/chain/app"
	chainDI "github.com/fd1az/oracle-resolver/business/chain/di"
	"github.com/fd1az/oracle-resolver/business/chain/infra/ethereum"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/keystore"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers the gateway. The key is loaded eagerly so a
// bad key fails registration instead of the first write.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := c.Get("config").(*config.Config)

	key, err := LoadKey(cfg.Chain)
	if err != nil {
		return err
	}

	di.RegisterToken(c, chainDI.Gateway, func(sr di.ServiceRegistry) app.Gateway {
		client := sr.Get("ethClient").(*ethclient.Client)
		log := sr.Get("logger").(logger.LoggerInterface)

		gw, err := NewGateway(client, cfg.Chain, key, log)
		if err != nil {
			panic("failed to create chain gateway: " + err.Error())
		}
		return gw
	})
	return nil
}

// Startup checks the node answers. An unreachable node is logged, not fatal;
// reads fail per call until it recovers.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	gw := chainDI.GetGateway(mono.Services())

	if err := gw.Ping(ctx); err != nil {
		log.Error(ctx, "rpc not reachable", "rpc", mono.Config().Chain.RPCURL, "error", err)
	}

	log.Info(ctx, "chain module started",
		"market", gw.MarketAddress().Hex(),
		"signer", gw.CanSign(),
		"account", gw.Account().Hex(),
	)
	return nil
}

// LoadKey returns the configured signing key, or nil when none is set.
func LoadKey(cfg config.ChainConfig) (*ecdsa.PrivateKey, error) {
	if !cfg.HasSigner() {
		return nil, nil
	}
	return keystore.Load(keystore.Source{
		PrivateKey: cfg.PrivateKey,
		KeyFile:    cfg.KeyFile,
		Password:   cfg.KeyPassword,
	})
}

// NewGateway builds the go-ethereum gateway from chain settings.
func NewGateway(backend ethereum.Backend, cfg config.ChainConfig, key *ecdsa.PrivateKey, log logger.LoggerInterface) (*ethereum.Gateway, error) {
	return ethereum.NewGateway(backend, ethereum.Config{
		ChainID:                cfg.ChainIDBig(),
		PredictionMarket:       cfg.PredictionMarketAddress(),
		OracleResolver:         cfg.OracleResolverAddress(),
		SettlementToken:        cfg.SettlementTokenAddress(),
		ReceiptPollInterval:    cfg.ReceiptPollInterval,
		ConfirmTimeout:         cfg.ConfirmTimeout,
		GasBufferPercent:       cfg.GasBufferPercent,
		AlreadyResolvedMarkers: cfg.AlreadyResolvedMarkers,
	}, key, log)
}
