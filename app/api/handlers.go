package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/lysyi3m/watchlist/app/watchlist"
)

// NewHandler creates the HTTP handlers. events may be nil, in which case the
// realtime endpoint reports itself unavailable.
func NewHandler(service WatchlistService, items ItemCounter, events http.Handler, version string) *Handler {
	return &Handler{
		service: service,
		items:   items,
		events:  events,
		version: version,
	}
}

func (h *Handler) Add(c *gin.Context) {
	var req addRequest
	if !bindJSON(c, &req, "Missing or invalid id") {
		return
	}

	item, err := h.service.Add(c.Request.Context(), req.ID, clientIdentifier(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "item": item})
}

func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if !bindJSON(c, &req, "Missing search or type") {
		return
	}

	results, err := h.service.Search(c.Request.Context(), req.Search, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) Totals(c *gin.Context) {
	var req totalsRequest
	if !bindJSON(c, &req, "Missing or invalid id") {
		return
	}

	mediaType, totals, err := h.service.Totals(c.Request.Context(), req.ID, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": req.ID, "type": mediaType, "totals": totals})
}

func (h *Handler) ListWatchlist(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Query("type"), c.Query("genre"), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) DeleteItem(c *gin.Context) {
	var req deleteRequest
	if !bindJSON(c, &req, "Missing or invalid id") {
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) UpdateProgress(c *gin.Context) {
	if c.ContentType() != binding.MIMEJSON {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content-Type must be application/json"})
		return
	}

	var req progressRequest
	if !bindJSON(c, &req, "Invalid payload. Expect { id: number, progress: number >= 0 }") {
		return
	}

	result, err := h.service.UpdateProgress(c.Request.Context(), req.ID, *req.Progress)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Item == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "progress": result.Progress})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": result.Item})
}

func (h *Handler) UpdateRating(c *gin.Context) {
	var req ratingRequest
	if !bindJSON(c, &req, "Missing or invalid id") {
		return
	}

	if err := h.service.UpdateRating(c.Request.Context(), req.ID, req.UserRating); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Random(c *gin.Context) {
	item, err := h.service.RandomPick(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) Events(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime updates are disabled"})
		return
	}
	h.events.ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"realtime":  h.events != nil,
	}

	if count, err := h.items.GetItemCount(c.Request.Context()); err == nil {
		health["items"] = count
	} else {
		slog.Warn("Failed to count items for health check", "error", err)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "Watchlist",
		"version":     h.version,
		"description": "Shared anime and manga watchlist backed by the AniList catalog",
		"endpoints": map[string]string{
			"add":      "POST /add",
			"search":   "POST /search",
			"totals":   "POST /totals",
			"list":     "GET /watchlist?type=&genre=&sort=",
			"delete":   "DELETE /watchlist",
			"progress": "PATCH /watchlist/progress",
			"rating":   "PATCH /watchlist/rating",
			"random":   "GET /random?type=",
			"events":   "GET /events (websocket)",
			"health":   "GET /health",
			"metrics":  "GET /metrics",
		},
	})
}

// clientIdentifier keys the add cooldown.
func clientIdentifier(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return watchlist.UnknownIdentifier
}
