package request

import (
	"fmt"
	"net/http"

	"waitly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// UUIDParam parses a path parameter, writing a 400 response when it is malformed
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), nil, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes and validates a request body, writing a 400 response on failure
func BindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return false
	}
	if err := validate.Struct(dest); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Validation failed", nil, validationErrors(err))
		return false
	}
	return true
}

// Actor returns the authenticated user id set by the JWT middleware
func Actor(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if s, ok := userID.(string); ok {
			return s
		}
	}
	return ""
}

// OrganizationID returns the organization claim set by the JWT middleware
func OrganizationID(c *gin.Context) string {
	if orgID, exists := c.Get("organization_id"); exists {
		if s, ok := orgID.(string); ok {
			return s
		}
	}
	return ""
}

func validationErrors(err error) interface{} {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
	return fields
}
