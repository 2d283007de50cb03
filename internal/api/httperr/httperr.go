// Package httperr maps service and domain errors onto the HTTP error
// taxonomy of pkg/errors.
package httperr

import (
	"errors"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/domain/geo"
	"github.com/gocomet/tourism-transport/internal/domain/transport"
	apperrors "github.com/gocomet/tourism-transport/pkg/errors"
)

// FromDomain maps service errors onto the HTTP error taxonomy. Errors that
// are already an AppError pass through; anything unknown is internal.
func FromDomain(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	// terminal Advance errors wrap both; terminal wins
	case errors.Is(err, transport.ErrAlreadyTerminal):
		return apperrors.AlreadyTerminal("ride already finished/cancelled", err)
	case errors.Is(err, transport.ErrIllegalTransition):
		return apperrors.IllegalTransition("cannot update: ride already past this stage", err)
	case errors.Is(err, transport.ErrConflict),
		errors.Is(err, transport.ErrStatusChanged):
		return apperrors.Conflict("request no longer available", err)
	case errors.Is(err, transport.ErrDriverBusy):
		return apperrors.Conflict("driver already has an active ride", err)
	case errors.Is(err, transport.ErrNotActive):
		return apperrors.Conflict("ride is not active", err)
	case errors.Is(err, driver.ErrAlreadyRegistered):
		return apperrors.Conflict("driver profile already exists", err)

	case errors.Is(err, transport.ErrForbidden):
		return apperrors.Forbidden("not allowed to act on this ride", err)
	case errors.Is(err, driver.ErrNotVerified):
		return apperrors.Forbidden("driver is not verified", err)

	case errors.Is(err, transport.ErrNotFound):
		return apperrors.NotFound("transport request not found", err)
	case errors.Is(err, driver.ErrDriverNotFound):
		return apperrors.NotFound("driver not found", err)

	case errors.Is(err, geo.ErrInvalidCoordinates),
		errors.Is(err, transport.ErrInvalidPassengers),
		errors.Is(err, transport.ErrInvalidStatus),
		errors.Is(err, transport.ErrInvalidFare),
		errors.Is(err, driver.ErrInvalidOwner),
		errors.Is(err, driver.ErrInvalidVehicleType),
		errors.Is(err, driver.ErrInvalidPlate),
		errors.Is(err, driver.ErrInvalidCapacity),
		errors.Is(err, driver.ErrInvalidVerification):
		return apperrors.Validation(err.Error(), err)
	}

	return apperrors.Internal("An unexpected error occurred", err)
}
