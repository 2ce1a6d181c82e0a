package apperrors

import (
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")

	ErrBalanceInsufficient = errors.New("insufficient coin balance")
	ErrBalanceMismatch     = errors.New("cached balance does not match ledger sum")

	ErrWebinarNotFound  = errors.New("webinar not found")
	ErrCourseNotFound   = errors.New("no active course")
	ErrAlreadyEnrolled  = errors.New("user already enrolled")

	ErrPaymentNotFound        = errors.New("payment not found")
	ErrGatewayFailed          = errors.New("payment gateway call failed")
	ErrPaymentAlreadyPaid     = errors.New("course already paid by user")
	ErrPaymentInProgress      = errors.New("payment for course already in progress")
	ErrPaymentAlreadyTerminal = errors.New("payment already in terminal status")
	ErrPaymentStatusInvalid   = errors.New("payment status is not valid")
)
