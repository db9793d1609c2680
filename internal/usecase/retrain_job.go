package usecase

import (
	"context"
	"errors"

	"IncluScore/internal/domain/models"
	"IncluScore/internal/services/lifecycle"
	applogger "IncluScore/pkg/logger"
	"IncluScore/pkg/queue"
)

// RetrainMessageType routes on-demand retrain requests through the queue.
const RetrainMessageType = "model.retrain"

// RetrainPayload carries who asked for the retrain and why.
type RetrainPayload struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// RetrainJob drains the outcome buffer into a new model version when an
// operator requests it, instead of waiting for the threshold.
type RetrainJob struct {
	manager *lifecycle.Manager
	logger  *applogger.Logger
}

func NewRetrainJob(manager *lifecycle.Manager, logger *applogger.Logger) *RetrainJob {
	return &RetrainJob{manager: manager, logger: logger}
}

func (j *RetrainJob) Name() string { return "retrain_job" }

func (j *RetrainJob) Type() string { return RetrainMessageType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RetrainPayload](payload)
	if err != nil {
		return err
	}

	j.logger.Info("manual retrain requested",
		applogger.String("reason", p.Reason),
		applogger.Int("buffered_outcomes", j.manager.BufferedOutcomes()))

	if err := j.manager.Retrain(ctx); err != nil {
		var tf *models.TrainingFailure
		if errors.As(err, &tf) && tf.Reason == "no buffered outcomes" {
			// nothing to learn from; not a job failure worth retrying
			j.logger.Warn("retrain skipped, no buffered outcomes")
			return nil
		}
		j.logger.Error("manual retrain failed", applogger.Error(err))
		return err
	}
	return nil
}

var _ queue.Job = (*RetrainJob)(nil)
