package blacklist

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthdesk/admin-api/internal/handler"
	"github.com/healthdesk/admin-api/internal/repository"
	apperrors "github.com/healthdesk/admin-api/pkg/errors"
)

type Handler struct {
	repo repository.BlacklistRepository
}

func NewHandler(repo repository.BlacklistRepository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/blacklist", h.ListBlacklist)
}

func (h *Handler) ListBlacklist(c *gin.Context) {
	page := handler.BindPagination(c)
	entries, total, err := h.repo.List(c.Request.Context(), page)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(entries, page, total))
}
