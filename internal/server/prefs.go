package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scoutrun/scout/internal/store"
)

type PreferencesHandler struct {
	Store *store.Store
	// Defaults returned before a user has saved anything.
	DefaultModel      string
	DefaultDimensions int
}

func (h *PreferencesHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.GET("", h.get)
	g.PUT("", h.put)
}

func (h *PreferencesHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	prefs, found, err := h.Store.GetPreferences(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		prefs = store.Preferences{
			UserID:              userID,
			EmbeddingModel:      h.DefaultModel,
			EmbeddingDimensions: h.DefaultDimensions,
		}
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *PreferencesHandler) put(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req PreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.EmbeddingDimensions <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "embedding_dimensions must be > 0")
	}
	if req.EmbeddingModel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "embedding_model required")
	}
	if err := h.Store.UpsertPreferences(c.Request().Context(), store.Preferences{
		UserID:              userID,
		EmbeddingModel:      req.EmbeddingModel,
		EmbeddingDimensions: req.EmbeddingDimensions,
	}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
