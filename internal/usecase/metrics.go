package usecase

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes reported by the authorization gate.
const (
	outcomeAllowed         = "allowed"
	outcomeForbidden       = "forbidden"
	outcomeUnauthenticated = "unauthenticated"
	outcomeInvalidRole     = "invalid_role"
)

// Metrics holds the collectors used by the authorization core. A nil *Metrics is a valid no-op.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	AuditDropped       prometheus.Counter
	AuditWriteFailures *prometheus.CounterVec
}

// NewMetrics constructs and registers the authorization collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maintenance",
		Subsystem: "authz",
		Name:      "decisions_total",
		Help:      "Authorization decisions partitioned by check kind and outcome.",
	}, []string{"check", "outcome"})
	if err := reg.Register(decisions); err != nil {
		existing, err := alreadyRegistered[*prometheus.CounterVec](err)
		if err != nil {
			return nil, fmt.Errorf("register decisions collector: %w", err)
		}
		decisions = existing
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "maintenance",
		Subsystem: "audit",
		Name:      "dropped_total",
		Help:      "Audit records dropped because the buffer was full or the sink was closed.",
	})
	if err := reg.Register(dropped); err != nil {
		existing, err := alreadyRegistered[prometheus.Counter](err)
		if err != nil {
			return nil, fmt.Errorf("register audit dropped collector: %w", err)
		}
		dropped = existing
	}

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maintenance",
		Subsystem: "audit",
		Name:      "write_failures_total",
		Help:      "Audit records a writer failed to persist, partitioned by writer.",
	}, []string{"writer"})
	if err := reg.Register(failures); err != nil {
		existing, err := alreadyRegistered[*prometheus.CounterVec](err)
		if err != nil {
			return nil, fmt.Errorf("register audit failures collector: %w", err)
		}
		failures = existing
	}

	return &Metrics{
		Decisions:          decisions,
		AuditDropped:       dropped,
		AuditWriteFailures: failures,
	}, nil
}

func alreadyRegistered[C prometheus.Collector](err error) (C, error) {
	var zero C
	already, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return zero, err
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return zero, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
	}
	return existing, nil
}

func (m *Metrics) observeDecision(check, outcome string) {
	if m == nil || m.Decisions == nil {
		return
	}
	m.Decisions.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) auditDropped() {
	if m == nil || m.AuditDropped == nil {
		return
	}
	m.AuditDropped.Inc()
}

func (m *Metrics) auditWriteFailed(writer string) {
	if m == nil || m.AuditWriteFailures == nil {
		return
	}
	m.AuditWriteFailures.WithLabelValues(writer).Inc()
}
