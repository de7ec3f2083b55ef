package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Code int         `json:"code"` // business code, 0 on success
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

const (
	SuccessCode = 0
	ErrorCode   = 1
	// QuotaExceededCode marks a create rejected by the URL limit.
	QuotaExceededCode = 1001
)

func successResponse(c *gin.Context, httpStatus int, msg string, data interface{}) {
	c.JSON(httpStatus, Response{
		Code: SuccessCode,
		Msg:  msg,
		Data: data,
	})
}

func errorResponse(c *gin.Context, httpStatus int, code int, msg string, data interface{}) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code: code,
		Msg:  msg,
		Data: data,
	})
}

func Ok(c *gin.Context, data interface{}) {
	successResponse(c, http.StatusOK, "success", data)
}

func OkWithMessage(c *gin.Context, msg string, data interface{}) {
	successResponse(c, http.StatusOK, msg, data)
}

// Created replies 201 and points Location at the new resource.
func Created(c *gin.Context, location string, msg string, data interface{}) {
	if location != "" {
		c.Header("Location", location)
	}
	successResponse(c, http.StatusCreated, msg, data)
}

// Accepted replies 202 for work handed to the background queue.
func Accepted(c *gin.Context, msg string, data interface{}) {
	successResponse(c, http.StatusAccepted, msg, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest is used for binding and validation failures (HTTP 400).
func BadRequest(c *gin.Context, msg string, err error) {
	if msg == "" {
		msg = "invalid request parameters"
	}
	if err != nil {
		c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	errorResponse(c, http.StatusBadRequest, ErrorCode, msg, nil)
}

func Unauthorized(c *gin.Context, msg string) {
	errorResponse(c, http.StatusUnauthorized, ErrorCode, msg, nil)
}

// Forbidden carries optional data, such as the quota that was hit.
func Forbidden(c *gin.Context, code int, msg string, data interface{}) {
	errorResponse(c, http.StatusForbidden, code, msg, data)
}

func NotFound(c *gin.Context) {
	NotFoundMsg(c, "resource not found")
}

func NotFoundMsg(c *gin.Context, msg string) {
	errorResponse(c, http.StatusNotFound, ErrorCode, msg, nil)
}

func Conflict(c *gin.Context, msg string) {
	errorResponse(c, http.StatusConflict, ErrorCode, msg, nil)
}

func TooManyRequests(c *gin.Context, msg string) {
	errorResponse(c, http.StatusTooManyRequests, ErrorCode, msg, nil)
}

// ServerError hides err from the client; the request logger records it.
func ServerError(c *gin.Context, err error) {
	if err != nil {
		c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	errorResponse(c, http.StatusInternalServerError, ErrorCode, "internal server error", nil)
}

// ServerErrorMsg is ServerError with a caller supplied message.
func ServerErrorMsg(c *gin.Context, msg string, err error) {
	if err != nil {
		c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	errorResponse(c, http.StatusInternalServerError, ErrorCode, msg, nil)
}

func Unavailable(c *gin.Context, msg string, data interface{}) {
	errorResponse(c, http.StatusServiceUnavailable, ErrorCode, msg, data)
}
