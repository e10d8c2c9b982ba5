package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/partselect/backend/internal/domain"
)

// Version is reported by the health endpoint; overridden at build time
var Version = "1.0.0"

// Selector is the selection capability the handlers need
type Selector interface {
	Select(ctx context.Context, req domain.SelectRequest) *domain.SelectionResult
	ComparePrices(ctx context.Context, partNumber string) (*domain.PriceSummary, error)
	Alternatives(ctx context.Context, partNumber string) ([]string, error)
	Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	selector Selector
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler. A nil selector makes the API
// endpoints answer 503.
func NewHandler(selector Selector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{selector: selector, logger: logger}
}

// selectRequest is the JSON body of POST /api/v1/select
type selectRequest struct {
	Query       string            `json:"query" binding:"required"`
	Constraints map[string]string `json:"constraints"`
	TopK        int               `json:"top_k" binding:"min=0,max=20"`
	Sources     []string          `json:"sources"`
	Quantities  map[string]int    `json:"quantities"`
	References  map[string]string `json:"references"`
}

// searchParams are the query parameters of GET /api/v1/search
type searchParams struct {
	Term     string   `form:"q"`
	Category string   `form:"category"`
	Limit    int      `form:"limit" binding:"min=0,max=50"`
	Sources  []string `form:"source"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "partselect-backend",
		"version": Version,
	})
}

// Select runs a selection query
func (h *Handler) Select(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: query is required and top_k must be between 0 and 20")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.badRequest(c, "query must not be blank")
		return
	}

	result := h.selector.Select(c.Request.Context(), domain.SelectRequest{
		Query:       req.Query,
		Constraints: req.Constraints,
		TopK:        req.TopK,
		Sources:     req.Sources,
		Quantities:  req.Quantities,
		References:  req.References,
	})
	c.JSON(http.StatusOK, result)
}

// Search lists merged catalog matches without scoring them
func (h *Handler) Search(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var params searchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.badRequest(c, "invalid query: limit must be between 0 and 50")
		return
	}
	if strings.TrimSpace(params.Term) == "" && strings.TrimSpace(params.Category) == "" {
		h.badRequest(c, "q or category is required")
		return
	}

	result, err := h.selector.Search(c.Request.Context(), domain.SearchQuery{
		Term:     params.Term,
		Category: params.Category,
		Limit:    params.Limit,
		Sources:  params.Sources,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ComparePrices returns the per-vendor price summary of one part
func (h *Handler) ComparePrices(c *gin.Context) {
	if !h.available(c) {
		return
	}

	summary, err := h.selector.ComparePrices(c.Request.Context(), c.Param("partNumber"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Alternatives returns substitute part numbers for one part
func (h *Handler) Alternatives(c *gin.Context) {
	if !h.available(c) {
		return
	}

	partNumber := c.Param("partNumber")
	alts, err := h.selector.Alternatives(c.Request.Context(), partNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"partNumber":   domain.CanonicalID(partNumber),
		"alternatives": alts,
	})
}

func (h *Handler) available(c *gin.Context) bool {
	if h.selector != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error: "selection service not configured",
		Code:  "unavailable",
	})
	return false
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "invalid_request"})
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		h.badRequest(c, err.Error())
	case errors.Is(err, domain.ErrSourceUnavailable):
		h.logger.Warn("Upstream source failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream source unavailable", Code: "source_unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out", Code: "timeout"})
	default:
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}
