package driver

import "errors"

var (
	ErrDriverNotFound      = errors.New("driver not found")
	ErrAlreadyRegistered   = errors.New("user already has a driver profile")
	ErrInvalidOwner        = errors.New("driver must belong to a user")
	ErrInvalidVehicleType  = errors.New("invalid vehicle type")
	ErrInvalidPlate        = errors.New("invalid vehicle plate")
	ErrInvalidCapacity     = errors.New("vehicle capacity must be positive")
	ErrInvalidVerification = errors.New("invalid verification status")
	ErrNotVerified         = errors.New("driver is not verified")
)
