package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"IncluScore/internal/domain/models"
	"IncluScore/internal/service/ratelimit"
	"IncluScore/internal/usecase"
	xhttp "IncluScore/pkg/http"
	xlogger "IncluScore/pkg/logger"
	"IncluScore/pkg/queue"
)

// ScoringEchoHandler exposes the scoring engine over HTTP.
type ScoringEchoHandler struct {
	logger   *xlogger.Logger
	engine   *usecase.ScoringEngine
	retrainQ queue.QueueService
	rl       *ratelimit.Limiter
	simRPS   float64
	simBurst float64
}

func NewScoringEchoHandler(logger *xlogger.Logger, engine *usecase.ScoringEngine, retrainQ queue.QueueService, simRPS, simBurst float64) *ScoringEchoHandler {
	return &ScoringEchoHandler{
		logger:   logger,
		engine:   engine,
		retrainQ: retrainQ,
		rl:       ratelimit.New(),
		simRPS:   simRPS,
		simBurst: simBurst,
	}
}

func (h *ScoringEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/score", h.Score)
	g.POST("/simulate", h.Simulate)
	g.POST("/outcomes", h.RecordOutcome)
	g.GET("/beneficiaries/:id/history", h.History)
	g.GET("/beneficiaries/:id/score", h.LatestScore)
	g.GET("/model/versions", h.ModelVersions)
	g.GET("/model/active", h.ActiveModel)
	g.POST("/model/retrain", h.Retrain)
	e.GET("/healthz", h.Health)
}

func (h *ScoringEchoHandler) Score(c echo.Context) error {
	req := &models.ScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.engine.Score(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("score usecase error",
			xlogger.String("beneficiary", req.BeneficiaryID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *ScoringEchoHandler) Simulate(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":simulate", h.simBurst, h.simRPS) {
		h.logger.Warn("simulate rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("RATE_LIMITED", "", "too many simulation requests", http.StatusTooManyRequests))
	}

	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.engine.Simulate(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("simulate usecase error",
			xlogger.String("beneficiary", req.BeneficiaryID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScoringEchoHandler) RecordOutcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.engine.RecordOutcome(c.Request().Context(), req); err != nil {
		h.logger.Error("outcome usecase error",
			xlogger.String("beneficiary", req.BeneficiaryID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *ScoringEchoHandler) History(c echo.Context) error {
	beneficiaryID := c.Param("id")
	if beneficiaryID == "" {
		return xhttp.BadRequestResponse(c, "beneficiary id required")
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, time.Now().UTC())

	records, err := h.engine.History(c.Request().Context(), beneficiaryID, from, to, req.Limit)
	if err != nil {
		h.logger.Error("history usecase error",
			xlogger.String("beneficiary", beneficiaryID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.ListResponse(c, records, int64(len(records)))
}

func (h *ScoringEchoHandler) LatestScore(c echo.Context) error {
	beneficiaryID := c.Param("id")
	if beneficiaryID == "" {
		return xhttp.BadRequestResponse(c, "beneficiary id required")
	}

	report, err := h.engine.Latest(c.Request().Context(), beneficiaryID)
	if err != nil {
		h.logger.Error("latest score lookup error",
			xlogger.String("beneficiary", beneficiaryID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	if report == nil {
		return xhttp.NotFoundResponse(c, "no score on record")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, report)
}

func (h *ScoringEchoHandler) ModelVersions(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 20)
	versions, err := h.engine.Manager().Versions(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("model versions lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapDomainError(err))
	}
	return xhttp.ListResponse(c, versions, int64(len(versions)))
}

func (h *ScoringEchoHandler) ActiveModel(c echo.Context) error {
	version, ok := h.engine.Manager().Active()
	if !ok {
		return xhttp.AppErrorResponse(c, mapDomainError(models.ErrModelUnavailable))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"version":            version.ID,
		"algorithm":          version.Algorithm,
		"training_data_size": version.TrainingDataSize,
		"accuracy":           version.Accuracy,
		"f1":                 version.F1,
		"created_at":         version.CreatedAt,
		"buffered_outcomes":  h.engine.Manager().BufferedOutcomes(),
	})
}

func (h *ScoringEchoHandler) Retrain(c echo.Context) error {
	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	payload := usecase.RetrainPayload{Reason: req.Reason, RequestedBy: c.RealIP()}
	if err := h.retrainQ.PublishMessage(c.Request().Context(), usecase.RetrainMessageType, payload); err != nil {
		h.logger.Error("retrain enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c,
			xhttp.InternalError("could not enqueue retrain job").WithError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": "enqueued"})
}

func (h *ScoringEchoHandler) Health(c echo.Context) error {
	if err := h.engine.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("UNHEALTHY", "", "storage unreachable", http.StatusServiceUnavailable).WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// mapDomainError converts domain errors into HTTP application errors.
func mapDomainError(err error) error {
	var (
		verr  *models.ValidationError
		uerr  *models.UnknownFieldError
		serr  *models.SchemaMismatchError
		tfail *models.TrainingFailure
	)
	switch {
	case errors.Is(err, models.ErrModelUnavailable):
		return xhttp.NewAppError("MODEL_UNAVAILABLE", "", "no active model version", http.StatusServiceUnavailable).WithError(err)
	case errors.Is(err, models.ErrEmptyChangeSet):
		return xhttp.BadRequestError("changes must contain at least one field").WithError(err)
	case errors.Is(err, models.ErrOutcomeThrottled):
		return xhttp.NewAppError("RATE_LIMITED", "", "too many outcome submissions for this beneficiary", http.StatusTooManyRequests).WithError(err)
	case errors.As(err, &verr):
		return xhttp.NewAppError("VALIDATION", verr.Field, verr.Error(), http.StatusBadRequest).
			WithParam("allowed", verr.Allowed).WithError(err)
	case errors.As(err, &uerr):
		return xhttp.NewAppError("UNKNOWN_FIELD", uerr.Field, uerr.Error(), http.StatusBadRequest).WithError(err)
	case errors.As(err, &serr):
		return xhttp.NewAppError("SCHEMA_MISMATCH", "", serr.Error(), http.StatusConflict).WithError(err)
	case errors.As(err, &tfail):
		return xhttp.NewAppError("TRAINING_FAILED", "", tfail.Error(), http.StatusConflict).WithError(err)
	default:
		return xhttp.InternalError("scoring failed").WithError(err)
	}
}

var _ xhttp.Handler = (*ScoringEchoHandler)(nil)
