package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/sitemap"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) Sitemap(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	catalog, err := h.products.ListAllForSitemap(c.Request.Context())
	if err != nil {
		slog.Error("error loading catalog for sitemap", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	entries := []sitemap.Entry{
		{Path: "/", ChangeFreq: "daily", Priority: "1.0"},
		{Path: "/products", ChangeFreq: "daily", Priority: "0.9"},
	}
	for _, p := range catalog {
		entries = append(entries, sitemap.Entry{
			Path:       "/products/" + p.ID,
			LastMod:    p.UpdatedAt,
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	out, err := sitemap.XML(h.cfg.AppBaseURL, entries)
	if err != nil {
		slog.Error("error rendering sitemap", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Data(http.StatusOK, "application/xml", out)
}

func (h *Handler) Robots(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain", sitemap.Robots(h.cfg.AppBaseURL))
}
