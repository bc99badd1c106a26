package api

import (
	"errors"
	"net/http"

	"reflights/internal/domain"
)

var statusByKind = []struct {
	err    error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrDeserialization, http.StatusBadRequest},
	{domain.ErrAuthorization, http.StatusForbidden},
	{domain.ErrChainNotAllowlisted, http.StatusForbidden},
	{domain.ErrSenderNotAllowlisted, http.StatusForbidden},
	{domain.ErrTicketNotFound, http.StatusNotFound},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrNotListed, http.StatusNotFound},
	{domain.ErrPayment, http.StatusPaymentRequired},
	{domain.ErrInsufficientFee, http.StatusPaymentRequired},
	{domain.ErrTransport, http.StatusBadGateway},
	{domain.ErrAlreadyUsed, http.StatusConflict},
	{domain.ErrTooEarly, http.StatusConflict},
	{domain.ErrNotResellable, http.StatusConflict},
	{domain.ErrFlightDeparted, http.StatusConflict},
	{domain.ErrAlreadyListed, http.StatusConflict},
	{domain.ErrListingInactive, http.StatusConflict},
	{domain.ErrIDCollision, http.StatusConflict},
}

func statusFor(err error) int {
	for _, k := range statusByKind {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
