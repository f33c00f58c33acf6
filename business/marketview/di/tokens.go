// Package di contains dependency injection tokens for the market view context.
package di

import (
	"github.com/fd1az/oracle-resolver/business/marketview/app"
	"github.com/fd1az/oracle-resolver/internal/di"
)

// Public service tokens - exposed to other modules
var (
	MarketService = di.NewToken[*app.Service]("marketview.MarketService")
)

func GetMarketService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, MarketService)
}
