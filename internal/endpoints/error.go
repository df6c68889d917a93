package endpoints

import (
	"context"
	"errors"
	"net/http"

	"cantontrack/internal/domain"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	METRIC_NOT_FOUND   = iota + 101 // 101 - No series exists for the requested metric
	STORAGE_FAILURE                 // 102 - The backing store returned an error
	REQUEST_CANCELLED               // 103 - Request was cancelled by client or server timeout
	METHOD_NOT_ALLOWED              // 104 - Only GET is served
)

var (
	ErrRequestCancelled = errors.New("request cancelled by client or server timeout")
	ErrMethodNotAllowed = errors.New("method not allowed, only GET requests are supported")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, domain.ErrMetricNotFound):
		return METRIC_NOT_FOUND
	case errors.Is(err, ErrRequestCancelled), isCancellation(err):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrMethodNotAllowed):
		return METHOD_NOT_ALLOWED
	case errors.Is(err, domain.ErrStorage):
		return STORAGE_FAILURE
	default:
		return API_FAILURE // Default for any unhandled error
	}
}

// StatusCode picks the HTTP status reported alongside err.
func StatusCode(err error) int {
	switch GetErrorCode(err) {
	case API_SUCCESS:
		return http.StatusOK
	case METRIC_NOT_FOUND:
		return http.StatusNotFound
	case REQUEST_CANCELLED:
		return http.StatusRequestTimeout
	case METHOD_NOT_ALLOWED:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
