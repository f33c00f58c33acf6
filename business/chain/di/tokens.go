// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/oracle-resolver/business/chain/app"
	"github.com/fd1az/oracle-resolver/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway = di.NewToken[app.Gateway]("chain.Gateway")
)

func GetGateway(c di.ServiceRegistry) app.Gateway {
	return di.GetToken(c, Gateway)
}
