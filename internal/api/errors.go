package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/entity"
	"github.com/arkivo/arkivo/internal/mutate"
	"github.com/arkivo/arkivo/internal/platform/httpx"
	"github.com/arkivo/arkivo/internal/query"
)

// respondError maps domain errors onto the RPC error taxonomy.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, access.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Permission Denied", "caller lacks the required capability")
	case errors.Is(err, entity.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no entity matches the lookup")
	case errors.Is(err, mutate.ErrNotRoleMember):
		httpx.Problem(w, http.StatusPreconditionFailed, "Failed Precondition", "owner role is not one the caller belongs to")
	case errors.Is(err, query.ErrInvalidArgument):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case errors.Is(err, entity.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "kind/name already in use")
	case errors.As(err, &validationErrs):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", validationErrs.Error())
	default:
		h.logger.Error("rpc failure", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
