package server

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/skyfield-labs/terralens/internal/runtime"
	"github.com/skyfield-labs/terralens/internal/store"
)

// WatchlistsHandler manages the per-user tickers the scheduler observes.
type WatchlistsHandler struct {
	Store *store.Store
}

func (h *WatchlistsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("/:id", h.remove)
}

// List
//
//	@Summary	List watchlist entries
//	@Tags		watchlists
//	@Produce	json
//	@Success	200	{array}		WatchlistResponse
//	@Failure	500	{object}	HTTPError
//	@Router		/api/watchlists [get]
func (h *WatchlistsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	entries, err := h.Store.ListWatchlists(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]WatchlistResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, WatchlistResponse{
			ID:           e.ID,
			Ticker:       e.Ticker,
			Industry:     e.Industry,
			ScheduleCron: e.ScheduleCron,
			CreatedAt:    e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Create
//
//	@Summary	Add watchlist entry
//	@Tags		watchlists
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		AddWatchlistRequest	true	"Watchlist payload"
//	@Success	201		{object}	IDResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	409		{object}	HTTPError
//	@Failure	500		{object}	HTTPError
//	@Router		/api/watchlists [post]
func (h *WatchlistsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req AddWatchlistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ticker required")
	}
	id, err := h.Store.AddWatchlist(c.Request().Context(), userID, ticker, strings.TrimSpace(req.Industry), req.ScheduleCron)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return echo.NewHTTPError(http.StatusConflict, "ticker already watched")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// Remove
//
//	@Summary	Delete watchlist entry
//	@Tags		watchlists
//	@Param		id	path	string	true	"Entry id"
//	@Success	204	{string}	string	"No Content"
//	@Failure	404	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/api/watchlists/{id} [delete]
func (h *WatchlistsHandler) remove(c echo.Context) error {
	userID := c.Get("user_id").(string)
	err := h.Store.DeleteWatchlist(c.Request().Context(), c.Param("id"), userID)
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "watchlist entry not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
