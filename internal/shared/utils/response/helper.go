package response

import (
	"net/http"

	"waitly/internal/shared/apperrors"
	"waitly/pkg/logger"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a service error to a response. Unexpected errors are
// logged; public callers get a generic message, internal callers the cause.
func RespondError(c *gin.Context, err error, detailed bool) {
	code := apperrors.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		logger.GetDefault().LogHTTPError(c, err, code)
		if !detailed {
			RespondJSON(c, "error", code, "Something went wrong, please try again later", nil, nil)
			return
		}
	}
	RespondJSON(c, "error", code, err.Error(), nil, nil)
}
