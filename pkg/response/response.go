// Package response defines the JSON envelope returned by every API endpoint.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Check the request data.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var URLExpiredResponse = Response{
	Status:  StatusError,
	Error:   "URL Expired",
	Message: "This link has expired and is no longer available.",
}

var RateLimitExceededResponse = Response{
	Status:  StatusError,
	Error:   "Too Many Requests",
	Message: "Too many requests. Please try again later.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// ValidationErrorResponse builds an error envelope carrying one detail entry
// per failed field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data.",
	}

	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, vErr := range vErrs {
			resp.Details = append(resp.Details, validationDetail(vErr))
		}
	}

	return resp
}

func validationDetail(vErr validator.FieldError) map[string]string {
	issue := fmt.Sprintf("failed on the '%s' rule", vErr.Tag())

	switch vErr.Tag() {
	case "required":
		issue = "is required"
	case "url":
		issue = "must be a valid URL"
	}

	return map[string]string{
		"field": vErr.Field(),
		"issue": issue,
	}
}
