package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
	apperrors "github.com/healthdesk/admin-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

type ListData struct {
	Items interface{} `json:"items"`
	Meta  PageMeta    `json:"meta"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func NewListResponse(items interface{}, page model.Pagination, total int64) *Response {
	return NewSuccessResponse(ListData{
		Items: items,
		Meta:  PageMeta{Page: page.Page, PageSize: page.PageSize, Total: total},
	})
}

// RespondError writes err using the status of the AppError it carries.
// Anything else is reported as a 500 without leaking details.
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	if appErr.Code == apperrors.ErrInternal {
		c.Error(err)
	}
	c.AbortWithStatusJSON(appErr.StatusCode(), &Response{
		Status:  "error",
		Message: appErr.Message,
		Error:   appErr.Code.String(),
	})
}

// ParseID reads a uuid path parameter, answering 400 when it is malformed.
func ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, &Response{
			Status:  "error",
			Message: "invalid " + param,
			Error:   apperrors.ErrBadRequest.String(),
		})
		return uuid.Nil, false
	}
	return id, true
}

// BindPagination reads page and page_size query parameters.
func BindPagination(c *gin.Context) model.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	p := model.Pagination{Page: page, PageSize: size}
	p.Normalize()
	return p
}

const ContextActor = "actor"

func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(ContextActor, actor)
}

// ActorFrom returns the authenticated admin with request metadata attached.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	if !ok {
		return model.Actor{}, false
	}
	actor.IPAddress = c.ClientIP()
	actor.UserAgent = c.Request.UserAgent()
	return actor, true
}

// RequireActor is ActorFrom that answers 401 when no admin is attached.
func RequireActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, &Response{
			Status:  "error",
			Message: "authentication required",
			Error:   apperrors.ErrUnauthorized.String(),
		})
	}
	return actor, ok
}

// BindJSON decodes the request body, answering 400 on malformed input.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, &Response{
			Status:  "error",
			Message: "invalid request body",
			Error:   apperrors.ErrBadRequest.String(),
		})
		return false
	}
	return true
}
