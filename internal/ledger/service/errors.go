package service

import (
	"github.com/cockroachdb/errors"
)

type Kind string

const (
	KindInvalidPrice         Kind = "InvalidPrice"
	KindInvalidPlanName      Kind = "InvalidPlanName"
	KindIncorrectPayment     Kind = "IncorrectPayment"
	KindFeeTooHigh           Kind = "FeeTooHigh"
	KindInvalidAddress       Kind = "InvalidAddress"
	KindAlreadyRegistered    Kind = "AlreadyRegistered"
	KindNotACreator          Kind = "NotACreator"
	KindSelfSubscription     Kind = "SelfSubscription"
	KindAlreadySubscribed    Kind = "AlreadySubscribed"
	KindNotActivePlan        Kind = "NotActivePlan"
	KindNoActiveSubscription Kind = "NoActiveSubscription"
	KindNoFundsToWithdraw    Kind = "NoFundsToWithdraw"
	KindNotOwner             Kind = "NotOwner"
)

type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryState         Category = "state"
	CategoryAuthorization Category = "authorization"
)

// Error is a ledger rejection. A rejected call has no side effects.
type Error struct {
	Kind     Kind
	Category Category
	Reason   string
}

func (e *Error) Error() string { return e.Reason }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidPrice     = &Error{KindInvalidPrice, CategoryValidation, "Price must be greater than 0"}
	ErrInvalidPlanName  = &Error{KindInvalidPlanName, CategoryValidation, "Plan name required"}
	ErrIncorrectPayment = &Error{KindIncorrectPayment, CategoryValidation, "Incorrect payment amount"}
	ErrFeeTooHigh       = &Error{KindFeeTooHigh, CategoryValidation, "Fee cannot exceed 10%"}
	ErrInvalidAddress   = &Error{KindInvalidAddress, CategoryValidation, "Invalid address"}

	ErrAlreadyRegistered    = &Error{KindAlreadyRegistered, CategoryState, "Already registered as creator"}
	ErrNotACreator          = &Error{KindNotACreator, CategoryState, "Not a registered creator"}
	ErrSelfSubscription     = &Error{KindSelfSubscription, CategoryState, "Cannot subscribe to yourself"}
	ErrAlreadySubscribed    = &Error{KindAlreadySubscribed, CategoryState, "Already subscribed"}
	ErrNotActivePlan        = &Error{KindNotActivePlan, CategoryState, "Plan is not active"}
	ErrNoActiveSubscription = &Error{KindNoActiveSubscription, CategoryState, "No active subscription"}
	ErrNoFundsToWithdraw    = &Error{KindNoFundsToWithdraw, CategoryState, "No funds to withdraw"}

	ErrNotOwner = &Error{KindNotOwner, CategoryAuthorization, "Caller is not the owner"}
)

// AsError extracts the ledger rejection from err, if any. Storage failures
// return false.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
