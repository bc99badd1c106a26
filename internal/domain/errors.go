package domain

import "errors"

var (
	ErrValidation           = errors.New("validation failed")
	ErrAuthorization        = errors.New("not authorized")
	ErrPayment              = errors.New("payment failed")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrAlreadyUsed          = errors.New("ticket already used")
	ErrTooEarly             = errors.New("too early to use ticket")
	ErrNotResellable        = errors.New("ticket not resellable")
	ErrFlightDeparted       = errors.New("flight departed")
	ErrAlreadyListed        = errors.New("ticket already listed")
	ErrNotListed            = errors.New("ticket not listed")
	ErrListingInactive      = errors.New("listing inactive")
	ErrChainNotAllowlisted  = errors.New("destination domain not allowlisted")
	ErrSenderNotAllowlisted = errors.New("sender not allowlisted")
	ErrInsufficientFee      = errors.New("insufficient fee")
	ErrTransport            = errors.New("transport failure")
	ErrDeserialization      = errors.New("malformed payload")
	ErrIDCollision          = errors.New("ticket id already live")
	ErrNotFound             = errors.New("not found")
)

var rejections = []error{
	ErrValidation, ErrAuthorization, ErrPayment, ErrTicketNotFound, ErrAlreadyUsed,
	ErrTooEarly, ErrNotResellable, ErrFlightDeparted, ErrAlreadyListed, ErrNotListed,
	ErrListingInactive, ErrChainNotAllowlisted, ErrSenderNotAllowlisted,
	ErrInsufficientFee, ErrDeserialization, ErrIDCollision, ErrNotFound,
}

// IsRejection reports whether err is a domain rejection, as opposed to an
// infrastructure failure that may succeed on retry. ErrTransport is not a
// rejection.
func IsRejection(err error) bool {
	return Kind(err) != "" && !errors.Is(err, ErrTransport)
}

// Kind returns the message of the first sentinel err wraps, or "" if none.
func Kind(err error) string {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	if errors.Is(err, ErrTransport) {
		return ErrTransport.Error()
	}
	return ""
}
