package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/middleware"
	"github.com/RGU-Computing/clood/internal/pkg/errcode"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/pkg/response"
)

func getSubject(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextSubjectKey)
	subject, _ := value.(string)
	return subject
}

// bindJSON decodes the body into dst and writes an InvalidRequest reply on
// failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		handleError(c, appErr.InvalidRequest(err.Error()))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		handleError(c, appErr.InvalidRequest(name+" must be a non-negative integer"))
		return 0, false
	}
	return v, true
}

func statusOf(kind appErr.Kind) (int, int) {
	switch kind {
	case appErr.KindProjectNotFound:
		return http.StatusNotFound, errcode.ErrProjectNotFound
	case appErr.KindCasebaseNotFound:
		return http.StatusNotFound, errcode.ErrCasebaseNotFound
	case appErr.KindCaseNotFound:
		return http.StatusNotFound, errcode.ErrCaseNotFound
	case appErr.KindTokenNotFound:
		return http.StatusNotFound, errcode.ErrTokenNotFound
	case appErr.KindProjectDuplicate:
		return http.StatusConflict, errcode.ErrProjectDuplicate
	case appErr.KindCaseDuplicate:
		return http.StatusConflict, errcode.ErrCaseDuplicate
	case appErr.KindProjectNameInvalid:
		return http.StatusBadRequest, errcode.ErrProjectNameInvalid
	case appErr.KindTokenName:
		return http.StatusBadRequest, errcode.ErrTokenInvalid
	case appErr.KindInvalidVectorArray:
		return http.StatusBadRequest, errcode.ErrInvalidVectorArray
	case appErr.KindInvalidRequest:
		return http.StatusBadRequest, errcode.ErrInvalid
	case appErr.KindProjectCreate, appErr.KindProjectUpdate, appErr.KindProjectDelete:
		return http.StatusInternalServerError, errcode.ErrProjectWrite
	case appErr.KindCasebaseDelete, appErr.KindCaseUpdate, appErr.KindCaseDelete:
		return http.StatusInternalServerError, errcode.ErrCaseWrite
	case appErr.KindTokenCreate, appErr.KindTokenDelete:
		return http.StatusInternalServerError, errcode.ErrTokenWrite
	case appErr.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable, errcode.ErrUpstreamUnavailable
	case appErr.KindUnauthorized:
		return http.StatusUnauthorized, errcode.ErrUnauthorized
	}
	return http.StatusInternalServerError, errcode.ErrInternal
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("subject", getSubject(c)),
		zap.Error(err),
	)
	if de, ok := appErr.AsError(err); ok {
		status, code := statusOf(de.Kind)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed")
		} else {
			logger.Warn("request rejected")
		}
		response.Fail(c, status, code, de)
		return
	}
	logger.Error("request failed")
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Fail(c, http.StatusUnauthorized, errcode.ErrUnauthorized, appErr.Unauthorized())
	case errors.Is(err, appErr.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Envelope{Code: errcode.ErrNotFound, Message: "not found"})
	case errors.Is(err, appErr.ErrInvalid):
		response.Fail(c, http.StatusBadRequest, errcode.ErrInvalid, appErr.InvalidRequest(err.Error()))
	case errors.Is(err, appErr.ErrConflict):
		c.JSON(http.StatusConflict, response.Envelope{Code: errcode.ErrConflict, Message: "conflict"})
	case errors.Is(err, appErr.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, response.Envelope{Code: errcode.ErrUpstreamUnavailable, Message: "upstream unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, response.Envelope{Code: errcode.ErrInternal, Message: "internal error"})
	}
}
