package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bugtracker/internal/middleware"
	contextutils "bugtracker/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// HandleAppError sends err as a structured JSON error with the status for its code
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// StandardizeHTTPError creates consistent HTTP error responses with structured error information
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	var errorCode contextutils.ErrorCode
	var severity contextutils.SeverityLevel

	switch statusCode {
	case http.StatusBadRequest:
		errorCode = contextutils.ErrorCodeInvalidInput
		severity = contextutils.SeverityWarn
	case http.StatusNotFound:
		errorCode = contextutils.ErrorCodeRecordNotFound
		severity = contextutils.SeverityInfo
	case http.StatusConflict:
		errorCode = contextutils.ErrorCodeConflict
		severity = contextutils.SeverityWarn
	case http.StatusServiceUnavailable:
		errorCode = contextutils.ErrorCodeServiceUnavailable
		severity = contextutils.SeverityError
	default:
		errorCode = contextutils.ErrorCodeInternalError
		severity = contextutils.SeverityError
	}

	appErr := contextutils.NewAppError(errorCode, severity, message, details)
	_ = c.Error(appErr)
	c.JSON(statusCode, appErr.ToJSON())
}

// HandleBindError reports a failed ShouldBindJSON. Validator failures list every
// offending field; malformed JSON is INVALID_FORMAT.
func HandleBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		msgs := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		HandleAppError(c, contextutils.Detailf(contextutils.ErrValidationFailed, "%s", strings.Join(msgs, "; ")))
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		HandleAppError(c, contextutils.Detailf(contextutils.ErrMissingRequired, "request body must not be empty"))
	case errors.As(err, &maxBytesErr):
		HandleAppError(c, contextutils.Detailf(contextutils.ErrInvalidInput, "request body exceeds %d bytes", maxBytesErr.Limit))
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidFormat,
			contextutils.SeverityWarn,
			"Invalid request body",
			err.Error(),
			err,
		))
	default:
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			err.Error(),
			err,
		))
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s item(s)", field, fe.Param())
	case tagSeverity, tagCategory, tagStatus:
		return fmt.Sprintf("%s %q is not a valid %s", field, fe.Value(), fe.Tag())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// jsonFieldName lowercases the struct field name when no json name was registered
func jsonFieldName(fe validator.FieldError) string {
	if name := fe.Field(); name != "" && name != fe.StructField() {
		return name
	}
	return strings.ToLower(fe.StructField())
}
