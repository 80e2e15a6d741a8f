package responses

import (
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeUnknownRoute   = 1
	CodeBadJSON        = 2
	CodeInternal       = 3
	CodeNotLoaded      = 4
	CodeParseFailure   = 5
	CodePersistFailure = 6
	CodeLoadFailure    = 7
	CodeFetchFailure   = 8
)

// Error describes an error for humans and machines
type Error struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return fmt.Sprintf("status:%d, code:%d, message:%q", e.Status, e.Code, e.Message)
}

// NewError - a brand new error
func NewError(code int, message string) *Error {
	return &Error{
		Status:  statusForCode(code),
		Code:    code,
		Message: message,
	}
}

// NewErrorf - a brand new error using fmt.Sprintf
func NewErrorf(code int, message string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(message, args...))
}

func statusForCode(code int) int {
	switch code {
	case CodeUnknownRoute:
		return http.StatusNotFound
	case CodeBadJSON, CodeParseFailure:
		return http.StatusBadRequest
	case CodeNotLoaded:
		return http.StatusServiceUnavailable
	case CodeLoadFailure, CodeFetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
