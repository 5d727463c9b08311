package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-chatbot/internal/models"
)

const (
	CodeOK             = 0
	CodeBadRequest     = 40000
	CodeInvalidFile    = 40001
	CodeFileTooLarge   = 40002
	CodeIndexNotBuilt  = 40901
	CodeInternalServer = 50000
	CodeUpstream       = 50201
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// statusFor maps a pipeline error onto an HTTP status and response code
func statusFor(err error) (int, int) {
	switch {
	case errors.Is(err, errMissingFile):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge
	case errors.Is(err, models.ErrIndexNotBuilt):
		return http.StatusConflict, CodeIndexNotBuilt
	case errors.Is(err, models.ErrLoad), errors.Is(err, models.ErrChunk):
		return http.StatusBadRequest, CodeInvalidFile
	case errors.Is(err, models.ErrGeneration), errors.Is(err, models.ErrProvider):
		return http.StatusBadGateway, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeInternalServer
	}
}
