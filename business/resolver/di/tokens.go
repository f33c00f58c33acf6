// Package di contains dependency injection tokens for the resolver context.
package di

import (
	"github.com/fd1az/oracle-resolver/business/resolver/app"
	"github.com/fd1az/oracle-resolver/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Journal   = di.NewToken[app.Journal]("resolver.Journal")
	Submitter = di.NewToken[*app.Submitter]("resolver.Submitter")
	Loop      = di.NewToken[*app.Loop]("resolver.Loop")
)

func GetJournal(c di.ServiceRegistry) app.Journal {
	return di.GetToken(c, Journal)
}

func GetSubmitter(c di.ServiceRegistry) *app.Submitter {
	return di.GetToken(c, Submitter)
}

func GetLoop(c di.ServiceRegistry) *app.Loop {
	return di.GetToken(c, Loop)
}
