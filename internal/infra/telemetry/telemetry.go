package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arklim/maintenance-service/internal/infra/config"
)

// Provider owns the Prometheus registry shared by every collector in the service.
type Provider struct {
	registry *prometheus.Registry
	info     *prometheus.GaugeVec
}

// Attach builds the metrics registry with runtime collectors and a build info gauge.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "maintenance",
		Name:      "service_info",
		Help:      "Static service information.",
	}, []string{"service", "env"})
	if err := registry.Register(info); err != nil {
		return nil, fmt.Errorf("register service info: %w", err)
	}
	info.WithLabelValues(cfg.Telemetry.ServiceName, cfg.App.Env).Set(1)

	return &Provider{registry: registry, info: info}, nil
}

// Registry returns the registerer collectors should be attached to.
func (p *Provider) Registry() *prometheus.Registry {
	if p == nil {
		return prometheus.NewRegistry()
	}
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry(), promhttp.HandlerOpts{})
}
