package usecase

import (
	"context"
	"encoding/json"
	"time"

	"IncluScore/internal/domain/models"
	domrepo "IncluScore/internal/domain/repository"
	"IncluScore/internal/services/lifecycle"
	pkgkafka "IncluScore/pkg/kafka"
)

// OutcomeHandler consumes labeled outcomes and feeds them to the
// lifecycle manager for incremental learning.
type OutcomeHandler struct {
	topic   string
	manager *lifecycle.Manager
	metrics domrepo.Metrics
}

func NewOutcomeHandler(topic string, manager *lifecycle.Manager, metrics domrepo.Metrics) *OutcomeHandler {
	return &OutcomeHandler{topic: topic, manager: manager, metrics: metrics}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

func (h *OutcomeHandler) Handle(ctx context.Context, b []byte) error {
	var o models.Outcome
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if o.Creditworthy != 0 && o.Creditworthy != 1 {
		h.metrics.RecordError("consumer_label")
		// malformed label; ack and drop rather than poison-loop
		return nil
	}
	// E2E latency from submission to incorporation (approx)
	if !o.ObservedAt.IsZero() {
		h.metrics.RecordLatency("outcome_e2e_seconds", time.Since(o.ObservedAt).Seconds())
	}

	start := time.Now()
	err := h.manager.RecordOutcome(ctx, o)
	h.metrics.RecordLatency("outcome_record_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_record")
		return err
	}
	h.metrics.RecordOutcome("consumed")
	return nil
}

var _ pkgkafka.MessageHandler = (*OutcomeHandler)(nil)
