package suspension

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthdesk/admin-api/internal/handler"
	suspensionService "github.com/healthdesk/admin-api/internal/service/suspension"
)

type Handler struct {
	service suspensionService.SuspensionServicer
}

func NewHandler(service suspensionService.SuspensionServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors/:id")
	{
		doctors.GET("/suspension-count", h.GetSuspensionCount)
		doctors.GET("/suspensions", h.ListSuspensions)
		doctors.POST("/suspend", h.SuspendDoctor)
	}

	suspensions := r.Group("/suspensions/:id")
	{
		suspensions.POST("/lift", h.LiftSuspension)
		suspensions.POST("/appeal", h.SubmitAppeal)
		suspensions.POST("/appeal/review", h.ReviewAppeal)
	}
}

type liftRequest struct {
	Note string `json:"note"`
}

type appealRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) GetSuspensionCount(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	summary, err := h.service.GetSuspensionCount(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) ListSuspensions(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	records, err := h.service.ListSuspensions(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

// SuspendDoctor answers 201 with the new record, or 200 with deleted=true
// when the suspension reached the deletion threshold.
func (h *Handler) SuspendDoctor(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req suspensionService.SuspendRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.service.SuspendDoctor(c.Request.Context(), id, &req, actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Deleted {
		status = http.StatusOK
	}
	c.JSON(status, handler.NewSuccessResponse(result))
}

func (h *Handler) LiftSuspension(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req liftRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.service.LiftSuspension(c.Request.Context(), id, actor, req.Note)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) SubmitAppeal(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req appealRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	record, err := h.service.SubmitAppeal(c.Request.Context(), id, req.Notes, actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(record))
}

func (h *Handler) ReviewAppeal(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req suspensionService.ReviewRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.service.ReviewAppeal(c.Request.Context(), id, &req, actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
