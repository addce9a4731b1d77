package httpadapter

import (
	"net/http"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps upstream details out of 5xx bodies.
func publicErrorMessage(status int, err error) string {
	switch {
	case status < 500:
		return err.Error()
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return "search backends are unavailable"
	case status == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}
