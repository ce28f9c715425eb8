package resources

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/artpar/skybite/internal/core/auth"
	coredispatch "github.com/artpar/skybite/internal/core/dispatch"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/core/lifecycle"
	"github.com/artpar/skybite/internal/core/promotion"
	"github.com/artpar/skybite/internal/shell/dispatch"
	"github.com/artpar/skybite/internal/shell/geocoding"
	"github.com/artpar/skybite/internal/shell/media"
	"github.com/artpar/skybite/internal/shell/store"
	"github.com/manyminds/api2go"
)

// =============================================================================
// Error Mapping
// =============================================================================

// ErrorStatus maps a domain, store or collaborator error onto an HTTP status
// and a stable machine-readable code.
func ErrorStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrCartLineNotFound):
		return http.StatusNotFound, "cart_line_not_found"
	case errors.Is(err, geocoding.ErrNoResults):
		return http.StatusNotFound, "no_results"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, lifecycle.ErrDroneRequired):
		return http.StatusConflict, "drone_required"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, store.ErrDuplicateID), errors.Is(err, store.ErrDuplicateSlug):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, store.ErrDuplicateCode):
		return http.StatusConflict, "duplicate_code"
	case errors.Is(err, store.ErrForeignKey):
		return http.StatusUnprocessableEntity, "invalid_reference"
	case errors.Is(err, promotion.ErrNotApplicable):
		return http.StatusUnprocessableEntity, "promotion_not_applicable"
	case errors.Is(err, store.ErrUsageExhausted):
		return http.StatusUnprocessableEntity, "promotion_not_applicable"
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusBadRequest, "cart_empty"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrCartRestaurantMismatch):
		return http.StatusConflict, "cart_restaurant_mismatch"
	case errors.Is(err, domain.ErrRestaurantClosed):
		return http.StatusConflict, "restaurant_closed"
	case errors.Is(err, domain.ErrDishUnavailable):
		return http.StatusConflict, "dish_unavailable"
	case errors.Is(err, coredispatch.ErrNoDroneAvailable):
		return http.StatusConflict, "no_drone_available"
	case errors.Is(err, dispatch.ErrDroneNotEligible):
		return http.StatusConflict, "drone_not_eligible"
	case errors.Is(err, dispatch.ErrOrderNotConfirmed):
		return http.StatusConflict, "order_not_confirmed"
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, media.ErrUploadDisabled):
		return http.StatusServiceUnavailable, "uploads_disabled"
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway, "external_service_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// ErrorObject builds the JSON:API error object for err. Internal errors get
// a generic detail so store messages do not leak.
func ErrorObject(err error) api2go.Error {
	status, code := ErrorStatus(err)
	obj := api2go.Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  http.StatusText(status),
		Detail: err.Error(),
	}
	if status == http.StatusInternalServerError {
		obj.Detail = "An unexpected error occurred"
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		obj.Detail = verr.Message
		obj.Source = &api2go.ErrorSource{Pointer: "/data/attributes/" + verr.Field}
	}

	var nae *promotion.NotApplicableError
	if errors.As(err, &nae) {
		meta := map[string]interface{}{"code": nae.Code, "reason": nae.Reason}
		if nae.Reason == promotion.ReasonMinimumNotMet {
			meta["minimum"] = nae.Minimum
		}
		obj.Meta = meta
	}
	return obj
}

// ToHTTPError wraps err in an api2go.HTTPError carrying its mapped status.
func ToHTTPError(err error) error {
	var httpErr api2go.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	obj := ErrorObject(err)
	status, _ := ErrorStatus(err)
	httpErr = api2go.NewHTTPError(err, obj.Title, status)
	httpErr.Errors = []api2go.Error{obj}
	return httpErr
}

// fail returns the (Responder, error) pair api2go resources return on error.
func fail(err error) (api2go.Responder, error) {
	status, _ := ErrorStatus(err)
	return &Response{Code: status}, ToHTTPError(err)
}

// forbidden is the error for a caller lacking the right role.
func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", auth.ErrForbidden, reason)
}

// invalidBody is returned when api2go hands over an unexpected type.
func invalidBody() (api2go.Responder, error) {
	return fail(domain.NewValidationError("data", "invalid request body"))
}
