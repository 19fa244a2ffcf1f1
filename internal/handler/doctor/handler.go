package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthdesk/admin-api/internal/handler"
	"github.com/healthdesk/admin-api/internal/model"
	doctorService "github.com/healthdesk/admin-api/internal/service/doctor"
)

type Handler struct {
	service doctorService.DoctorServicer
}

func NewHandler(service doctorService.DoctorServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.RegisterDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PATCH("/:id/status", h.UpdateStatus)
	}
}

type updateStatusRequest struct {
	Status model.DoctorStatus `json:"status"`
}

func (h *Handler) RegisterDoctor(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}
	var req doctorService.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	doctor, err := h.service.Register(c.Request.Context(), &req, actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(doctor))
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	doctor, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

// ListDoctors accepts status, search, page and page_size query parameters.
func (h *Handler) ListDoctors(c *gin.Context) {
	filter := &model.DoctorFilter{
		Status:     model.DoctorStatus(c.Query("status")),
		Search:     c.Query("search"),
		Pagination: handler.BindPagination(c),
	}
	doctors, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(doctors, filter.Pagination, total))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	doctor, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}
