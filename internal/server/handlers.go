package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent"
	"github.com/mohammad-safakhou/deepresearch/internal/budget"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/tools"
	"github.com/mohammad-safakhou/deepresearch/models"
	"github.com/mohammad-safakhou/deepresearch/provider"
	"github.com/mohammad-safakhou/deepresearch/tools/reader"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

type queryRequest struct {
	Q             string `json:"q"`
	Budget        int    `json:"budget"`
	MaxBadAttempt int    `json:"maxBadAttempt"`
}

// trackerPair is the live progress state of one in-flight request. Stream
// handlers read from it; the loop goroutine writes.
type trackerPair struct {
	tokens  *budget.TokenTracker
	actions *budget.ActionTracker
}

// QueryHandler serves the query, stream and task endpoints. launch is a
// seam for tests; the default starts a real research loop goroutine.
type QueryHandler struct {
	cfg      *config.Config
	logger   *log.Logger
	registry session.Registry
	store    *store.Store
	provider provider.Provider
	searcher web_search.WebSearcher
	reader   reader.Reader

	mu      sync.RWMutex
	running map[string]*trackerPair

	launch func(cfg *config.Config, requestID, query string, tk *budget.TokenTracker, at *budget.ActionTracker)
}

func NewQueryHandler(cfg *config.Config, registry session.Registry, st *store.Store, prov provider.Provider, searcher web_search.WebSearcher, rd reader.Reader) *QueryHandler {
	h := &QueryHandler{
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[API] ", log.LstdFlags),
		registry: registry,
		store:    st,
		provider: prov,
		searcher: searcher,
		reader:   rd,
		running:  make(map[string]*trackerPair),
	}
	h.launch = h.launchAgent
	return h
}

func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("/query", h.handleQuery)
	g.GET("/stream/:request_id", h.streamTask)
	g.GET("/task/:request_id", h.getTask)
	g.GET("/tasks", h.listTasks)
}

func (h *QueryHandler) launchAgent(cfg *config.Config, requestID, query string, tk *budget.TokenTracker, at *budget.ActionTracker) {
	tl := tools.New(h.provider, tk, tools.Routing{
		Evaluator:     routeParams(cfg.LLM.Routing.Evaluator),
		QueryRewriter: routeParams(cfg.LLM.Routing.QueryRewriter),
		Dedup:         routeParams(cfg.LLM.Routing.Dedup),
		ErrorAnalyzer: routeParams(cfg.LLM.Routing.ErrorAnalyzer),
	})
	ag := agent.New(cfg, h.provider, tl, h.searcher, h.reader, h.registry, h.store, tk, at)
	go func() {
		ctx := context.Background()
		ag.ProcessQuery(ctx, requestID, query)
		telemetry.TokensSpent.Add(float64(tk.TotalUsage()))
		if task, err := h.registry.Get(ctx, requestID); err == nil {
			telemetry.TasksFinished.WithLabelValues(task.Status).Inc()
		}
	}()
}

func (h *QueryHandler) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	q := strings.TrimSpace(req.Q)
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	budgetTokens := req.Budget
	if budgetTokens <= 0 {
		budgetTokens = h.cfg.Agent.TokenBudget
	}
	runCfg := *h.cfg
	runCfg.Agent.TokenBudget = budgetTokens
	if req.MaxBadAttempt > 0 {
		runCfg.Agent.MaxBadAttempts = req.MaxBadAttempt
	}

	requestID := uuid.NewString()
	tk := budget.NewTokenTracker(budgetTokens)
	at := budget.NewActionTracker()
	h.mu.Lock()
	h.running[requestID] = &trackerPair{tokens: tk, actions: at}
	h.mu.Unlock()

	telemetry.TasksStarted.Inc()
	h.logger.Printf("accepted query %s (budget=%d)", requestID, budgetTokens)
	h.launch(&runCfg, requestID, q, tk, at)

	return c.JSON(http.StatusAccepted, map[string]string{"requestId": requestID})
}

func (h *QueryHandler) trackers(requestID string) *trackerPair {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running[requestID]
}

func (h *QueryHandler) dropTrackers(requestID string) {
	h.mu.Lock()
	delete(h.running, requestID)
	h.mu.Unlock()
}

// streamTask replays the actions taken so far and then follows the loop
// live, one SSE event per action, ending with a final answer or error event.
func (h *QueryHandler) streamTask(c echo.Context) error {
	requestID := c.Param("request_id")
	ctx := c.Request().Context()

	if _, err := h.registry.Get(ctx, requestID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown request id")
	}
	pair := h.trackers(requestID)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	telemetry.StreamClients.Inc()
	defer telemetry.StreamClients.Dec()

	send := func(event string, payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Printf("stream %s: marshal: %v", requestID, err)
			return
		}
		_, _ = resp.Write([]byte("event: " + event + "\n"))
		_, _ = resp.Write([]byte("data: " + string(data) + "\n\n"))
		flusher.Flush()
	}

	connected := map[string]interface{}{"requestId": requestID}
	if pair != nil {
		connected["budget"] = h.budgetInfo(pair)
		connected["state"] = pair.actions.State()
		connected["usage"] = pair.tokens.Usages()
	}
	send("connected", connected)

	interval := h.cfg.Agent.StepSleep
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastSent := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			task, err := h.registry.Get(ctx, requestID)
			if err != nil {
				send("error", models.StreamMessage{Type: "error", Data: map[string]string{"message": "task state lost"}})
				return nil
			}
			for ; lastSent < len(task.Actions); lastSent++ {
				msg := models.StreamMessage{
					Type: "progress",
					Data: task.Actions[lastSent],
					Step: lastSent + 1,
				}
				if pair != nil {
					msg.Budget = h.budgetInfo(pair)
				}
				send("progress", msg)
			}
			switch task.Status {
			case models.StatusCompleted:
				msg := models.StreamMessage{Type: "answer", Data: map[string]string{"answer": task.FinalAnswer}}
				if pair != nil {
					msg.Budget = h.budgetInfo(pair)
				}
				send("answer", msg)
				h.dropTrackers(requestID)
				return nil
			case models.StatusError:
				send("error", models.StreamMessage{Type: "error", Data: map[string]string{"message": task.FinalAnswer}})
				h.dropTrackers(requestID)
				return nil
			}
		}
	}
}

func (h *QueryHandler) getTask(c echo.Context) error {
	requestID := c.Param("request_id")
	ctx := c.Request().Context()

	if task, err := h.registry.Get(ctx, requestID); err == nil {
		return c.JSON(http.StatusOK, task)
	}
	if h.store != nil {
		rec, found, err := h.store.GetTask(ctx, requestID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if found {
			return c.JSON(http.StatusOK, rec)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "unknown request id")
}

func (h *QueryHandler) listTasks(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistence disabled")
	}
	limit := 0
	if v := strings.TrimSpace(c.QueryParam("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := h.store.ListTasks(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if recs == nil {
		recs = []store.TaskRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *QueryHandler) budgetInfo(pair *trackerPair) *models.BudgetInfo {
	used := pair.tokens.TotalUsage()
	total := pair.tokens.Budget()
	pct := "0.00"
	if total > 0 {
		pct = fmt.Sprintf("%.2f", float64(used)/float64(total)*100)
	}
	return &models.BudgetInfo{Used: used, Total: total, Percentage: pct}
}

func routeParams(r config.ModelRoute) models.ModelParams {
	return models.ModelParams{Model: r.Model, Temperature: r.Temperature, MaxTokens: r.MaxTokens}
}
