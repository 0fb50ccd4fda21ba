package apperr

import (
	"context"
	"errors"

	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
	"github.com/tuanvumaihuynh/storefront/pkg/zerror"
)

const (
	ValidationErrorCode    = "VALIDATION_FAILED"
	UnauthorizedCode       = "UNAUTHORIZED"
	InvalidTokenCode       = "INVALID_TOKEN"
	ProductIDRequiredCode  = "PRODUCT_ID_REQUIRED"
	InvalidIDCode          = "INVALID_ID"
	ProductNotFoundCode    = "PRODUCT_NOT_FOUND"
	NoChangesCode          = "NO_CHANGES"
	ConcurrentUpdateCode   = "CONCURRENT_UPDATE"
	PersistenceErrorCode   = "PERSISTENCE_FAILED"
	TimeoutCode            = "TIMEOUT"
	InvalidCredentialsCode = "INVALID_CREDENTIALS"
	EmailTakenCode         = "EMAIL_TAKEN"
	UnavailableCode        = "SERVICE_UNAVAILABLE"
)

var (
	ValidationErr         = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	MissingFieldsErr      = zerror.NewValidationFailed(ValidationErrorCode, "All fields are required")
	UnauthorizedErr       = zerror.NewUnauthorized(UnauthorizedCode, "Unauthorized")
	InvalidTokenErr       = zerror.NewForbidden(InvalidTokenCode, "Invalid Token")
	ProductIDRequiredErr  = zerror.NewBadRequest(ProductIDRequiredCode, "Product ID is required")
	InvalidIDErr          = zerror.NewBadRequest(InvalidIDCode, "Invalid product ID format")
	ProductNotFoundErr    = zerror.NewNotFound(ProductNotFoundCode, "Product not found")
	NoChangesErr          = zerror.NewBadRequest(NoChangesCode, "No changes were made")
	ConcurrentUpdateErr   = zerror.NewConflict(ConcurrentUpdateCode, "Product was modified concurrently, please retry")
	PersistenceErr        = zerror.NewInternalServerError(PersistenceErrorCode, "Failed to access product storage")
	TimeoutErr            = zerror.NewTimeout(TimeoutCode, "Storage operation timed out")
	InvalidCredentialsErr = zerror.NewUnauthorized(InvalidCredentialsCode, "Invalid email or password")
	EmailTakenErr         = zerror.NewConflict(EmailTakenCode, "Email is already registered")
	UnavailableErr        = zerror.NewServiceUnavailable(UnavailableCode, "Service is unavailable")
)

// FromStorage classifies an error returned by a repository. Errors that are
// already application errors pass through, deadline errors become TimeoutErr,
// CHECK constraint violations and out of range numbers become ValidationErr
// and everything else becomes PersistenceErr.
func FromStorage(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := zerror.From(err); ok {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutErr.WrapParent(err)
	}

	if db.IsCheckViolation(err, "") || db.IsNumericOutOfRange(err) {
		return ValidationErr.WrapParent(err)
	}

	return PersistenceErr.WrapParent(err)
}
