// Package di contains dependency injection tokens for the betting context.
package di

import (
	"github.com/fd1az/oracle-resolver/business/betting/app"
	"github.com/fd1az/oracle-resolver/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Client = di.NewToken[*app.Client]("betting.Client")
)

func GetClient(c di.ServiceRegistry) *app.Client {
	return di.GetToken(c, Client)
}
