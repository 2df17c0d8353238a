package billing

import (
	"context"
	"strings"

	"github.com/erp/projectbilling/internal/domain/shared"
	"go.uber.org/zap"
)

// Side effect names
const (
	SideEffectLedger       = "ledger_transaction"
	SideEffectLedgerSync   = "ledger_sync"
	SideEffectNotification = "notification"
)

// SideEffect reports the outcome of a best-effort step that runs alongside a
// primary operation. A degraded side effect never fails the operation.
type SideEffect struct {
	Name     string `json:"name"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// Applied returns a successful side effect
func Applied(name string) SideEffect {
	return SideEffect{Name: name}
}

// Degraded returns a failed side effect carrying the error as reason
func Degraded(name string, err error) SideEffect {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return SideEffect{Name: name, Degraded: true, Reason: reason}
}

// SideEffects is a list of side effect outcomes
type SideEffects []SideEffect

// Degraded returns true if any side effect degraded
func (s SideEffects) Degraded() bool {
	for _, e := range s {
		if e.Degraded {
			return true
		}
	}
	return false
}

// Reasons joins the reasons of degraded side effects
func (s SideEffects) Reasons() string {
	reasons := make([]string, 0, len(s))
	for _, e := range s {
		if e.Degraded {
			reasons = append(reasons, e.Name+": "+e.Reason)
		}
	}
	return strings.Join(reasons, "; ")
}

// PublishEvents publishes events through publisher and reports the outcome
// as a notification side effect. Publisher may be nil.
func PublishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) SideEffect {
	if publisher == nil || len(events) == 0 {
		return Applied(SideEffectNotification)
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish domain events",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
		return Degraded(SideEffectNotification, err)
	}
	return Applied(SideEffectNotification)
}
