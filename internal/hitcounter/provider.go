package hitcounter

import (
	"clipstash/internal/conf"
	"clipstash/internal/domain"
	"clipstash/internal/infra/eventbus"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is hitcounter providers.
var ProviderSet = wire.NewSet(ProvideAggregator, ProvideHandle)

// ProvideAggregator wires the clip repository in as the sink and the event
// bus as the publisher.
func ProvideAggregator(repo domain.ClipRepository, uow domain.UnitOfWork, c *conf.HitCounter, bus *eventbus.EventBus, logger log.Logger) *Aggregator {
	return NewAggregator(repo, uow, c, logger, WithPublisher(bus))
}

// ProvideHandle exposes the producer handle of the aggregator.
func ProvideHandle(a *Aggregator) *Handle {
	return a.Handle()
}
