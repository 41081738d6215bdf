package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skyfield-labs/terralens/internal/runtime"
	"github.com/skyfield-labs/terralens/internal/satellite"
	"github.com/skyfield-labs/terralens/internal/store"
)

// AnalysisRunner runs the full plan/observe/explain pipeline for one ticker.
type AnalysisRunner interface {
	Run(ctx context.Context, ticker, industry string, sites, proxies map[string][]satellite.Hint) (satellite.SatelliteSummary, error)
}

// analysisStore is the slice of the store the analyses handler needs.
type analysisStore interface {
	CreateRun(ctx context.Context, ticker, industry, status string) (string, error)
	FinishRun(ctx context.Context, runID string, status string, errMsg *string) error
	SaveSummary(ctx context.Context, rec store.SummaryRecord) (string, error)
	ListSummaries(ctx context.Context, ticker string, limit int) ([]store.SummaryRecord, error)
	GetSummaryByID(ctx context.Context, id string) (store.SummaryRecord, bool, error)
}

// AnalysesHandler exposes analysis runs and their persisted summaries.
type AnalysesHandler struct {
	Store  analysisStore
	Runner AnalysisRunner
	Index  *store.SummaryIndex
	Logger *log.Logger
}

func (h *AnalysesHandler) Register(api *echo.Group, secret []byte) {
	analyses := api.Group("/analyses")
	analyses.Use(runtime.EchoAuthMiddleware(secret))
	analyses.POST("", h.create)

	summaries := api.Group("/summaries")
	summaries.Use(runtime.EchoAuthMiddleware(secret))
	summaries.GET("", h.list)
	summaries.GET("/search", h.search)
	summaries.GET("/:id", h.get)
}

// Create
//
//	@Summary		Run analysis
//	@Description	Runs the satellite pipeline for a ticker and persists the summary
//	@Tags			analyses
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		AnalysisRequest	true	"Analysis payload"
//	@Success		200		{object}	AnalysisResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/analyses [post]
func (h *AnalysesHandler) create(c echo.Context) error {
	var req AnalysisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ticker required")
	}
	industry := strings.TrimSpace(req.Industry)

	ctx := c.Request().Context()
	runID, err := h.Store.CreateRun(ctx, ticker, industry, store.RunStatusRunning)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Hints stay request-scoped: handed to the pipeline as maps, never stored.
	sites := map[string][]satellite.Hint{}
	if len(req.SiteHints) > 0 {
		sites[ticker] = req.SiteHints
	}
	proxies := map[string][]satellite.Hint{}
	if len(req.ProxyHints) > 0 {
		proxies[industry] = req.ProxyHints
	}

	summary, err := h.Runner.Run(ctx, ticker, industry, sites, proxies)
	if err != nil {
		_ = h.Store.FinishRun(ctx, runID, store.RunStatusFailed, strPtr(err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	report := satellite.RenderReport(summary, time.Now().UTC().Format("2006-01-02"))

	status := store.RunStatusCompleted
	if !summary.Applicable() {
		status = store.RunStatusInapplicable
	}
	rec := store.SummaryRecord{
		RunID:            runID,
		Ticker:           ticker,
		Industry:         industry,
		Headline:         summary.Headline,
		Bullets:          summary.Bullets,
		Confidence:       summary.Confidence,
		Attribution:      summary.Attribution,
		ObservationCount: summary.RawCounts["observations"],
		GapCount:         summary.RawCounts["gaps"],
		Report:           report,
	}
	id, err := h.Store.SaveSummary(ctx, rec)
	if err != nil {
		_ = h.Store.FinishRun(ctx, runID, store.RunStatusFailed, strPtr(err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	rec.ID = id
	if h.Index != nil {
		if err := h.Index.Add(rec); err != nil && h.Logger != nil {
			h.Logger.Printf("summary index add: %v", err)
		}
	}
	if err := h.Store.FinishRun(ctx, runID, status, nil); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, AnalysisResponse{RunID: runID, Summary: summary, Report: report})
}

// List
//
//	@Summary	List summaries
//	@Tags		summaries
//	@Produce	json
//	@Param		ticker	query		string	false	"Filter by ticker"
//	@Param		limit	query		int		false	"Max rows"
//	@Success	200		{array}		SummaryResponse
//	@Failure	500		{object}	HTTPError
//	@Router		/api/summaries [get]
func (h *AnalysesHandler) list(c echo.Context) error {
	ticker := strings.ToUpper(strings.TrimSpace(c.QueryParam("ticker")))
	limit := queryInt(c, "limit")
	recs, err := h.Store.ListSummaries(c.Request().Context(), ticker, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SummaryResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summaryResponseFrom(rec, false))
	}
	return c.JSON(http.StatusOK, out)
}

// Search
//
//	@Summary	Search summaries
//	@Tags		summaries
//	@Produce	json
//	@Param		q		query		string	true	"Query string"
//	@Param		limit	query		int		false	"Max hits"
//	@Success	200		{array}		SearchHitResponse
//	@Failure	400		{object}	HTTPError
//	@Failure	500		{object}	HTTPError
//	@Router		/api/summaries/search [get]
func (h *AnalysesHandler) search(c echo.Context) error {
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "search index unavailable")
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	hits, err := h.Index.Search(q, queryInt(c, "limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SearchHitResponse, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchHitResponse{Score: hit.Score, Summary: summaryResponseFrom(hit.Summary, false)})
	}
	return c.JSON(http.StatusOK, out)
}

// Get
//
//	@Summary	Get summary
//	@Tags		summaries
//	@Produce	json
//	@Param		id	path		string	true	"Summary id"
//	@Success	200	{object}	SummaryResponse
//	@Failure	404	{object}	HTTPError
//	@Failure	500	{object}	HTTPError
//	@Router		/api/summaries/{id} [get]
func (h *AnalysesHandler) get(c echo.Context) error {
	rec, ok, err := h.Store.GetSummaryByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "summary not found")
	}
	return c.JSON(http.StatusOK, summaryResponseFrom(rec, true))
}

func summaryResponseFrom(rec store.SummaryRecord, includeReport bool) SummaryResponse {
	resp := SummaryResponse{
		ID:               rec.ID,
		RunID:            rec.RunID,
		Ticker:           rec.Ticker,
		Industry:         rec.Industry,
		Headline:         rec.Headline,
		Bullets:          rec.Bullets,
		Confidence:       rec.Confidence,
		Attribution:      rec.Attribution,
		ObservationCount: rec.ObservationCount,
		GapCount:         rec.GapCount,
		CreatedAt:        rec.CreatedAt,
	}
	if includeReport {
		resp.Report = rec.Report
	}
	return resp
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
