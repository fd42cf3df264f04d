package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/scoutrun/scout/internal/scheduler"
	"github.com/scoutrun/scout/internal/store"
)

// Runner executes a claimed execution; wired to the engine in Run.
type Runner interface {
	Run(ctx context.Context, scout store.Scout, executionID string) error
}

type ScoutsHandler struct {
	Store  *store.Store
	Runner Runner
}

func (h *ScoutsHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/pause", h.pause)
	g.POST("/:id/resume", h.resume)
	g.POST("/:id/run", h.runNow)
	g.GET("/:id/executions", h.executions)
	g.GET("/:id/executions/:exec_id", h.execution)
	g.GET("/:id/executions/:exec_id/steps", h.steps)
}

func (h *ScoutsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListScouts(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ScoutsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req ScoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Goal == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "goal required")
	}
	if req.Frequency == "" {
		req.Frequency = scheduler.FreqWeekly
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	id, err := h.Store.CreateScout(c.Request().Context(), store.Scout{
		UserID:    userID,
		Title:     req.Title,
		Goal:      req.Goal,
		Location:  req.Location,
		Queries:   req.Queries,
		Frequency: req.Frequency,
		IsActive:  active,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *ScoutsHandler) get(c echo.Context) error {
	sc, err := h.owned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *ScoutsHandler) update(c echo.Context) error {
	sc, err := h.owned(c)
	if err != nil {
		return err
	}
	var req ScoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title != "" {
		sc.Title = req.Title
	}
	if req.Goal != "" {
		sc.Goal = req.Goal
	}
	if len(req.Location) > 0 {
		sc.Location = req.Location
	}
	if req.Queries != nil {
		sc.Queries = req.Queries
	}
	if req.Frequency != "" {
		sc.Frequency = req.Frequency
	}
	if req.IsActive != nil {
		sc.IsActive = *req.IsActive
	}
	if err := h.Store.UpdateScout(c.Request().Context(), sc); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *ScoutsHandler) remove(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.DeleteScout(c.Request().Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "scout not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ScoutsHandler) pause(c echo.Context) error  { return h.setActive(c, false) }
func (h *ScoutsHandler) resume(c echo.Context) error { return h.setActive(c, true) }

func (h *ScoutsHandler) setActive(c echo.Context, active bool) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.SetScoutActive(c.Request().Context(), c.Param("id"), userID, active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "scout not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// runNow claims an execution immediately, bypassing the due predicate. The
// at-most-one-running rule still applies: a second run while one is in flight
// returns 409.
func (h *ScoutsHandler) runNow(c echo.Context) error {
	sc, err := h.owned(c)
	if err != nil {
		return err
	}
	snap, err := json.Marshal(scheduler.Snapshot{
		Goal:      sc.Goal,
		Queries:   sc.Queries,
		Location:  sc.Location,
		Frequency: sc.Frequency,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	execID, err := h.Store.ClaimScout(c.Request().Context(), sc.ID, snap)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyRunning) {
			return echo.NewHTTPError(http.StatusConflict, "an execution is already running")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	go func() {
		if err := h.Runner.Run(context.Background(), sc, execID); err != nil {
			c.Logger().Errorf("manual execution %s: %v", execID, err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"execution_id": execID})
}

func (h *ScoutsHandler) executions(c echo.Context) error {
	sc, err := h.owned(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListExecutions(c.Request().Context(), sc.ID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ScoutsHandler) execution(c echo.Context) error {
	sc, err := h.owned(c)
	if err != nil {
		return err
	}
	exec, err := h.Store.GetExecution(c.Request().Context(), c.Param("exec_id"))
	if err != nil || exec.ScoutID != sc.ID {
		return echo.NewHTTPError(http.StatusNotFound, "execution not found")
	}
	return c.JSON(http.StatusOK, exec)
}

func (h *ScoutsHandler) steps(c echo.Context) error {
	sc, err := h.owned(c)
	if err != nil {
		return err
	}
	exec, err := h.Store.GetExecution(c.Request().Context(), c.Param("exec_id"))
	if err != nil || exec.ScoutID != sc.ID {
		return echo.NewHTTPError(http.StatusNotFound, "execution not found")
	}
	steps, err := h.Store.ListSteps(c.Request().Context(), exec.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, steps)
}

// owned loads the scout in the path and verifies it belongs to the caller.
func (h *ScoutsHandler) owned(c echo.Context) (store.Scout, error) {
	userID := c.Get("user_id").(string)
	sc, err := h.Store.GetScout(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return store.Scout{}, echo.NewHTTPError(http.StatusNotFound, "scout not found")
	}
	return sc, nil
}
