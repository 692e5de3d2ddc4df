package maintenance

import (
	"clipstash/internal/conf"
	"clipstash/internal/domain"
	"clipstash/internal/infra/eventbus"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is maintenance providers.
var ProviderSet = wire.NewSet(ProvideSweeper)

// ProvideSweeper wires the sweeper to the clip repository and the event bus.
func ProvideSweeper(repo domain.ClipRepository, c *conf.Maintenance, bus *eventbus.EventBus, logger log.Logger) *Sweeper {
	return NewSweeper(repo, c, bus, logger)
}
