package api

import (
	"errors"
	"fmt"
	"time"

	"CrashCast/internal/domain/models"
	drepo "CrashCast/internal/domain/repository"
	"CrashCast/internal/engine"
	"CrashCast/internal/usecase"
	"CrashCast/pkg/cache"
	xhttp "CrashCast/pkg/http"
	xlogger "CrashCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastHandler exposes the prediction core over HTTP.
type ForecastHandler struct {
	logger     *xlogger.Logger
	forecaster *usecase.Forecaster
	history    drepo.HistoryStore
	cache      cache.Service
	collector  *xlogger.Collector
}

func NewForecastHandler(logger *xlogger.Logger, forecaster *usecase.Forecaster) *ForecastHandler {
	return &ForecastHandler{logger: logger, forecaster: forecaster}
}

// SetHistory injects the history store; nil disables /api/history.
func (h *ForecastHandler) SetHistory(s drepo.HistoryStore) { h.history = s }

// SetCache injects the query cache.
func (h *ForecastHandler) SetCache(c cache.Service) { h.cache = c }

// SetCollector injects the log collector backing /api/logs.
func (h *ForecastHandler) SetCollector(c *xlogger.Collector) { h.collector = c }

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/state", h.State)
	g.GET("/stats", h.Stats)
	g.GET("/history", h.History)
	g.GET("/logs", h.Logs)
	g.POST("/feedback", h.Feedback)
	g.POST("/override", h.Override)
	g.POST("/control", h.Control)

	r := g.Group("/rules")
	r.GET("", h.Rules)
	r.GET("/snapshot", h.Snapshot)
	r.POST("/reset", h.Reset)
	r.POST("/restore", h.Restore)
}

func (h *ForecastHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecaster.State())
}

func (h *ForecastHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecaster.Stats())
}

func (h *ForecastHandler) Feedback(c echo.Context) error {
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	fb := models.FeedbackSample{
		Timestamp:          xhttp.ParseTimeDefault(req.Timestamp, time.Now()),
		ObservedMultiplier: req.ObservedMultiplier,
	}
	if err := h.forecaster.SubmitFeedback(fb); err != nil {
		return h.engineErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"applied":  true,
		"observed": fb.ObservedMultiplier,
	})
}

func (h *ForecastHandler) Override(c echo.Context) error {
	req := &models.OverrideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ev, err := h.forecaster.SubmitOverride(req.Multiplier)
	if err != nil {
		return h.engineErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, ev)
}

func (h *ForecastHandler) Control(c echo.Context) error {
	req := &models.ControlRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	switch req.Action {
	case "start":
		h.forecaster.Start(c.Request().Context())
	case "stop":
		h.forecaster.Stop()
	case "pause":
		h.forecaster.Pause()
	case "resume":
		h.forecaster.Resume()
	}
	return xhttp.SuccessResponse(c, h.forecaster.State())
}

func (h *ForecastHandler) Rules(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecaster.Rules())
}

func (h *ForecastHandler) Snapshot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecaster.SnapshotRules())
}

func (h *ForecastHandler) Reset(c echo.Context) error {
	h.forecaster.ResetRules()
	return xhttp.SuccessResponse(c, h.forecaster.Rules())
}

func (h *ForecastHandler) Restore(c echo.Context) error {
	req := &models.RestoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.forecaster.RestoreRules(req.Snapshot); err != nil {
		return h.engineErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.forecaster.Rules())
}

func (h *ForecastHandler) History(c echo.Context) error {
	if h.history == nil {
		return xhttp.NotFoundResponse(c, "history store disabled")
	}

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	cacheKey := fmt.Sprintf("history:%d:%d:%s:%d", from.Unix(), to.Unix(), req.Category, req.Limit)
	if h.cache != nil {
		var cached []models.PredictionEvent
		if err := h.cache.Get(c.Request().Context(), cacheKey, &cached); err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
	}

	events, err := h.history.Query(c.Request().Context(), from, to, req.Category, req.Limit)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("history query error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history query failed").WithError(err))
	}

	if h.cache != nil {
		_ = h.cache.Set(c.Request().Context(), cacheKey, events, 5*time.Second)
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

func (h *ForecastHandler) Logs(c echo.Context) error {
	if h.collector == nil {
		return xhttp.ListResponse(c, []xlogger.Entry{}, 0)
	}
	n := xhttp.ParseIntDefault(c.QueryParam("limit"), 100)
	entries := h.collector.Recent(n)
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

// engineErrorResponse maps the core's typed errors to HTTP statuses.
func (h *ForecastHandler) engineErrorResponse(c echo.Context, err error) error {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_VALIDATION",
			Field:   verr.Field,
			Message: verr.Error(),
		}})
	}
	var cerr *engine.ConfigurationError
	if errors.As(err, &cerr) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(cerr.Error()))
	}
	if h.logger != nil {
		h.logger.Error("engine error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, xhttp.InternalError("engine failure").WithError(err))
}
