// Package di contains dependency injection tokens for the feed context.
package di

import (
	"github.com/fd1az/oracle-resolver/business/feed/app"
	"github.com/fd1az/oracle-resolver/internal/di"
)

// Public service tokens - exposed to other modules
var (
	FeedService = di.NewToken[*app.Service]("feed.FeedService")
)

func GetFeedService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, FeedService)
}
