// Package businessflow contains the core business logic of the communication dispatch engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Dispatch validation errors
	ErrMessageContentRequired   = errors.New("message content is required")
	ErrTargetCategoriesRequired = errors.New("at least one target category is required")
	ErrChannelRequired          = errors.New("at least one channel is required")
	ErrRequestRequired          = errors.New("request is required")

	// Dispatch outcome errors
	ErrCommunicationNotLogged    = errors.New("communication processed but not logged")
	ErrCommunicationNotScheduled = errors.New("communication could not be scheduled")
	ErrDuplicateDispatch         = errors.New("duplicate dispatch submission")
	ErrCommunicationNotFound     = errors.New("communication not found")

	// Citizen errors
	ErrCitizenNotFound     = errors.New("citizen not found")
	ErrInvalidPushToken    = errors.New("push token is invalid")
	ErrUnknownCategory     = errors.New("unknown notification category")
	ErrPreferencesRequired = errors.New("at least one preference is required")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrInvalidStatusFilter   = errors.New("unknown communication status")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsMessageContentRequired(err error) bool {
	return errors.Is(err, ErrMessageContentRequired)
}

func IsTargetCategoriesRequired(err error) bool {
	return errors.Is(err, ErrTargetCategoriesRequired)
}

func IsChannelRequired(err error) bool {
	return errors.Is(err, ErrChannelRequired)
}

// IsDispatchValidationError reports any of the pre-dispatch validation failures
func IsDispatchValidationError(err error) bool {
	return IsMessageContentRequired(err) || IsTargetCategoriesRequired(err) || IsChannelRequired(err) || errors.Is(err, ErrRequestRequired)
}

func IsCommunicationNotLogged(err error) bool {
	return errors.Is(err, ErrCommunicationNotLogged)
}

func IsCommunicationNotScheduled(err error) bool {
	return errors.Is(err, ErrCommunicationNotScheduled)
}

func IsDuplicateDispatch(err error) bool {
	return errors.Is(err, ErrDuplicateDispatch)
}

func IsCommunicationNotFound(err error) bool {
	return errors.Is(err, ErrCommunicationNotFound)
}

func IsCitizenNotFound(err error) bool {
	return errors.Is(err, ErrCitizenNotFound)
}

func IsInvalidPushToken(err error) bool {
	return errors.Is(err, ErrInvalidPushToken)
}

func IsUnknownCategory(err error) bool {
	return errors.Is(err, ErrUnknownCategory)
}

func IsPreferencesRequired(err error) bool {
	return errors.Is(err, ErrPreferencesRequired)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsInvalidStatusFilter(err error) bool {
	return errors.Is(err, ErrInvalidStatusFilter)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
