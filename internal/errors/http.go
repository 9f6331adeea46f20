package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response is the JSON body written for failed requests.
type Response struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// WriteHTTP converts a domain error to a JSON error response.
// Unknown errors are masked as a generic 500 so internals never leak.
func WriteHTTP(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	resp := Response{Code: string(CodeUnknown), Message: "an unexpected error occurred"}
	status := http.StatusInternalServerError

	var appErr *Error
	if errors.As(err, &appErr) {
		resp.Code = string(appErr.Code)
		resp.Message = appErr.Message
		resp.Metadata = appErr.Metadata
		status = appErr.Code.HTTPStatus()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
