package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scoutrun/scout/internal/rank"
	"github.com/scoutrun/scout/internal/store"
	"github.com/scoutrun/scout/provider"
)

// RecallHandler answers "what did my scouts find about X" by embedding the
// query and ranking stored execution summaries by cosine distance.
type RecallHandler struct {
	Store    *store.Store
	Provider provider.Provider
}

func (h *RecallHandler) Register(g *echo.Group, mw echo.MiddlewareFunc) {
	g.Use(mw)
	g.POST("", h.recall)
}

func (h *RecallHandler) recall(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req RecallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	ctx := c.Request().Context()
	vecs, err := h.Provider.Embed(ctx, []string{req.Query})
	if err != nil || len(vecs) == 0 {
		return echo.NewHTTPError(http.StatusBadGateway, "embed query failed")
	}
	query := vecs[0]

	var out []RecallHit
	switch req.Mode {
	case "", "db":
		hits, err := h.Store.SearchExecutionEmbeddings(ctx, userID, req.ScoutID, query, req.TopK)
		if err != nil {
			if errors.Is(err, store.ErrDimensionMismatch) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		for _, hit := range hits {
			out = append(out, RecallHit{
				ExecutionID: hit.ExecutionID,
				ScoutID:     hit.ScoutID,
				Summary:     hit.Summary,
				Distance:    hit.Distance,
				Similarity:  1 - hit.Distance,
				CompletedAt: hit.CompletedAt.Format(time.RFC3339),
			})
		}
	case "memory":
		stored, err := h.Store.ListExecutionEmbeddings(ctx, userID, req.ScoutID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		candidates := make([]rank.Candidate, 0, len(stored))
		for _, s := range stored {
			candidates = append(candidates, rank.Candidate{
				ExecutionID: s.ExecutionID,
				ScoutID:     s.ScoutID,
				Summary:     s.Summary,
				Vector:      s.Vector,
				CompletedAt: s.CompletedAt,
			})
		}
		hits, err := rank.TopK(query, candidates, req.TopK)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		for _, hit := range hits {
			out = append(out, RecallHit{
				ExecutionID: hit.ExecutionID,
				ScoutID:     hit.ScoutID,
				Summary:     hit.Summary,
				Distance:    hit.Distance,
				Similarity:  1 - hit.Distance,
				CompletedAt: hit.CompletedAt.Format(time.RFC3339),
			})
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be db or memory")
	}

	if out == nil {
		out = []RecallHit{}
	}
	return c.JSON(http.StatusOK, out)
}
