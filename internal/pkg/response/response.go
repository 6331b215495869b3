package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rentora/internal/pkg/apperr"
	"rentora/internal/pkg/validator"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// BindError renders a 400 for a failed request binding. When the error
// carries per-field rule failures they are included under details.
func BindError(c *gin.Context, err error) {
	if fields := validator.Fields(err); len(fields) > 0 {
		ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", fields)
		return
	}
	Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindInvalidState: http.StatusConflict,
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindAccessDenied: http.StatusForbidden,
	apperr.KindAuthenticity: http.StatusUnauthorized,
	apperr.KindSystem:       http.StatusInternalServerError,
}

// Err maps a service error onto the JSON error envelope by its apperr kind.
func Err(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	if kind == apperr.KindSystem {
		msg = "internal error"
	}
	Error(c, status, strings.ToUpper(string(kind)), msg)
}
