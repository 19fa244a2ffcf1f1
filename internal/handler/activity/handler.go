package activity

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/handler"
	"github.com/healthdesk/admin-api/internal/model"
)

// Lister is the read side of the activity service.
type Lister interface {
	List(ctx context.Context, filter *model.ActivityFilter, viewer model.Actor) ([]*model.ActivityLog, int64, error)
}

type Handler struct {
	service Lister
}

func NewHandler(service Lister) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/activity-logs", h.ListActivity)
}

// ListActivity filters by action, actor_id, entity_id and since (RFC 3339).
// Entries by other admins are anonymized unless the viewer is a super admin.
func (h *Handler) ListActivity(c *gin.Context) {
	viewer, ok := handler.RequireActor(c)
	if !ok {
		return
	}

	filter := &model.ActivityFilter{
		Action:     model.ActivityAction(c.Query("action")),
		Pagination: handler.BindPagination(c),
	}
	var err error
	if filter.ActorID, err = optionalUUID(c.Query("actor_id")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid actor_id"))
		return
	}
	if filter.EntityID, err = optionalUUID(c.Query("entity_id")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid entity_id"))
		return
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("since must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = &t
	}

	logs, total, err := h.service.List(c.Request.Context(), filter, viewer)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(logs, filter.Pagination, total))
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
