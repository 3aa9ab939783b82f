package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/enrollment-gateway/internal/middleware"
	"github.com/edusuite/enrollment-gateway/internal/service"
	"github.com/edusuite/enrollment-gateway/pkg/response"
)

// LookupHandler proxies the wizard's reference searches.
type LookupHandler struct {
	service *service.LookupService
}

// NewLookupHandler creates a new lookup handler.
func NewLookupHandler(svc *service.LookupService) *LookupHandler {
	return &LookupHandler{service: svc}
}

// SearchTutors godoc
// @Summary Search existing tutors
// @Description Find tutors in the core API for the attach step
// @Tags Lookups
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lookups/tutors [get]
func (h *LookupHandler) SearchTutors(c *gin.Context) {
	items, cacheHit, err := h.service.SearchTutors(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}
