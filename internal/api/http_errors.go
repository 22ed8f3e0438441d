package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatStore:
		return http.StatusServiceUnavailable, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	case core.ErrCatMalformed:
		return http.StatusBadGateway, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondDomainError maps a registry error to an HTTP status. Endpoints
// with a degraded-mode contract (/metrics/all) never reach this.
func respondDomainError(w http.ResponseWriter, err error) {
	if status, ok := httpStatusForDomainError(err); ok {
		respondError(w, status, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
