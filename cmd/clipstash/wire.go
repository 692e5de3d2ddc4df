//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"clipstash/internal/biz"
	"clipstash/internal/conf"
	"clipstash/internal/data"
	"clipstash/internal/hitcounter"
	"clipstash/internal/infra/eventbus"
	"clipstash/internal/maintenance"
	"clipstash/internal/server"
	"clipstash/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.HitCounter, *conf.Maintenance, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		eventbus.ProviderSet,
		hitcounter.ProviderSet,
		maintenance.ProviderSet,
		wire.Bind(new(biz.HitRecorder), new(*hitcounter.Handle)),
		newApp,
	))
}
