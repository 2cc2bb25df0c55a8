package errors

import "errors"

var (
	ErrProfessionalNotFound = errors.New("professional not found")

	ErrServiceNotFound = errors.New("service not found")

	ErrNoServices = errors.New("no services requested")

	ErrDuplicateService = errors.New("duplicate service in request")

	ErrInvalidID = errors.New("invalid catalog ID format")

	ErrCategoryMismatch = errors.New("services belong to different categories")

	ErrProfessionalInactive = errors.New("professional is not active")

	ErrCategoryNotOffered = errors.New("professional does not offer this category")
)
