// Package di contains dependency injection tokens for the resolution context.
package di

import (
	"github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/di"
)

// Public service tokens - exposed to other modules
var (
	RuleTable = di.NewToken[*domain.Table]("resolution.RuleTable")
)

func GetRuleTable(c di.ServiceRegistry) *domain.Table {
	return di.GetToken(c, RuleTable)
}
