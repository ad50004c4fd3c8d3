package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/shibakov/calroies-info-ms/internal/db"
	"github.com/shibakov/calroies-info-ms/internal/model"
	"github.com/shibakov/calroies-info-ms/internal/service"
)

const healthTimeout = 2 * time.Second

// decodeJSON decodes a single JSON value and rejects unknown fields.
func decodeJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &service.Error{Kind: service.KindValidation, Msg: "request body is required"}
		}
		return &service.Error{Kind: service.KindValidation, Msg: "invalid request body: " + err.Error()}
	}
	if dec.More() {
		return &service.Error{Kind: service.KindValidation, Msg: "request body must contain a single JSON value"}
	}
	return nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := http.StatusInternalServerError
	code := "internal"
	switch kind {
	case service.KindValidation:
		status, code = http.StatusBadRequest, "validation_error"
	case service.KindNotFound:
		status, code = http.StatusNotFound, "not_found"
	case service.KindUpstreamFatal:
		status, code = http.StatusBadGateway, "upstream_failed"
	}
	h.app.Logger.Error("request:error",
		"req_id", c.GetString(requestIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"kind", string(kind),
		"error", err.Error(),
	)
	c.JSON(status, gin.H{"error": code, "message": service.PublicMessage(err)})
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	g := errgroup.Group{}
	g.Go(func() error {
		if err := h.app.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var version int
		if err := h.app.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != db.LatestVersion() {
			return fmt.Errorf("schema version %d, want %d", version, db.LatestVersion())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.app.Logger.Error("health check failed", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unavailable", "upstreams": h.app.Upstreams()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok", "upstreams": h.app.Upstreams()})
}

func (h *Handler) search(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, &service.Error{Kind: service.KindValidation, Msg: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = v
	}
	res, err := h.app.Searcher.Search(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type entryRequest struct {
	Product    string   `json:"product"`
	Kcal100    *float64 `json:"kcal_100"`
	Protein100 *float64 `json:"protein_100"`
	Fat100     *float64 `json:"fat_100"`
	Carbs100   *float64 `json:"carbs_100"`
	Source     string   `json:"source"`
}

func macrosFrom(kcal, protein, fat, carbs *float64) (model.Macros, error) {
	if kcal == nil || protein == nil || fat == nil || carbs == nil {
		return model.Macros{}, &service.Error{Kind: service.KindValidation, Msg: "all macro fields are required"}
	}
	return model.Macros{Kcal: *kcal, Protein: *protein, Fat: *fat, Carbs: *carbs}, nil
}

func (h *Handler) autoAdd(c *gin.Context) {
	var req entryRequest
	if err := decodeJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	m, err := macrosFrom(req.Kcal100, req.Protein100, req.Fat100, req.Carbs100)
	if err != nil {
		h.fail(c, err)
		return
	}
	entry, err := h.app.Dictionary.Upsert(c.Request.Context(), service.UpsertEntryInput{
		Product: req.Product,
		Source:  model.EntrySource(req.Source),
		Macros:  m,
	}, service.ConflictRefresh)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) createViaEstimator(c *gin.Context) {
	if !h.app.Upstreams().Estimator {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "not_implemented", "message": "macro estimator is not configured"})
		return
	}
	var req struct {
		Product string `json:"product"`
	}
	if err := decodeJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	entry, err := h.app.Dictionary.ResolveOrCreate(c.Request.Context(), req.Product)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) updateDictEntry(c *gin.Context) {
	var req struct {
		ProductID  int64    `json:"product_id"`
		Kcal100    *float64 `json:"kcal_100"`
		Protein100 *float64 `json:"protein_100"`
		Fat100     *float64 `json:"fat_100"`
		Carbs100   *float64 `json:"carbs_100"`
	}
	if err := decodeJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	m, err := macrosFrom(req.Kcal100, req.Protein100, req.Fat100, req.Carbs100)
	if err != nil {
		h.fail(c, err)
		return
	}
	entry, err := h.app.Dictionary.UpdateEntry(c.Request.Context(), req.ProductID, m)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type logItemRequest struct {
	Product    string     `json:"product"`
	ProductID  int64      `json:"product_id"`
	Weight     *float64   `json:"weight"`
	QuantityG  *float64   `json:"quantity_g"`
	MealType   string     `json:"meal_type"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func (r logItemRequest) toInput() service.LogItemInput {
	in := service.LogItemInput{ProductID: r.ProductID, Product: r.Product, MealType: r.MealType}
	switch {
	case r.Weight != nil:
		in.QuantityGrams = *r.Weight
	case r.QuantityG != nil:
		in.QuantityGrams = *r.QuantityG
	}
	if r.OccurredAt != nil {
		in.OccurredAt = *r.OccurredAt
	}
	return in
}

func (h *Handler) addList(c *gin.Context) {
	var req []logItemRequest
	if err := decodeJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	items := make([]service.LogItemInput, 0, len(req))
	for _, it := range req {
		items = append(items, it.toInput())
	}
	stats, err := h.app.Journal.AddEntries(c.Request.Context(), items)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) updateItem(c *gin.Context) {
	var req struct {
		ID     int64   `json:"id"`
		Weight float64 `json:"weight"`
	}
	if err := decodeJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.app.Journal.UpdateQuantity(c.Request.Context(), req.ID, req.Weight)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) dailyStats(c *gin.Context) {
	stats, err := h.app.Journal.DailyStats(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getTargets(c *gin.Context) {
	ctx := c.Request.Context()
	date := strings.TrimSpace(c.Query("date"))
	stored, err := h.app.Targets.Current(ctx, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	effective, err := h.app.Targets.For(ctx, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored, "targets": effective})
}

func (h *Handler) setTargets(c *gin.Context) {
	var req struct {
		Kcal          float64 `json:"kcal"`
		ProteinG      float64 `json:"protein_g"`
		FatG          float64 `json:"fat_g"`
		CarbsG        float64 `json:"carbs_g"`
		EffectiveDate string  `json:"effective_date"`
	}
	if err := decodeJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	dt, err := h.app.Targets.Set(c.Request.Context(), service.SetTargetsInput{
		Kcal:          req.Kcal,
		ProteinG:      req.ProteinG,
		FatG:          req.FatG,
		CarbsG:        req.CarbsG,
		EffectiveDate: req.EffectiveDate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dt)
}
