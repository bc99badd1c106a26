package usecase

import (
	"context"
	"fmt"
	"strings"

	"reflights/internal/domain"
	"reflights/internal/domain/event"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/payment"
)

// Admin gates the operations reserved to the single administrator named
// in Settings.
type Admin struct {
	*core
	registry *Registry
}

func (a *Admin) authorize(caller string) error {
	if a.settings.Admin == "" || caller != a.settings.Admin {
		return fmt.Errorf("%w: %q is not the administrator", domain.ErrAuthorization, caller)
	}
	return nil
}

// AllowlistDomain allows or denies relocation toward domainID.
func (a *Admin) AllowlistDomain(ctx context.Context, caller, domainID string, allowed bool) error {
	domainID = strings.TrimSpace(domainID)
	err := a.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := a.authorize(caller); err != nil {
			return err
		}
		if domainID == "" {
			return fmt.Errorf("%w: domain is required", domain.ErrValidation)
		}
		return a.Allowlist.SetDomain(txCtx, domainID, allowed)
	})
	if err != nil {
		a.rejected("allowlist_domain", err, "domain", domainID)
		return err
	}
	a.Logger.Info("Destination allowlist updated", "domain", domainID, "allowed", allowed)
	return nil
}

// AllowlistSender allows or denies inbound messages from sender.
func (a *Admin) AllowlistSender(ctx context.Context, caller, sender string, allowed bool) error {
	sender = strings.TrimSpace(sender)
	err := a.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := a.authorize(caller); err != nil {
			return err
		}
		if sender == "" {
			return fmt.Errorf("%w: sender is required", domain.ErrValidation)
		}
		return a.Allowlist.SetSender(txCtx, sender, allowed)
	})
	if err != nil {
		a.rejected("allowlist_sender", err, "sender", sender)
		return err
	}
	a.Logger.Info("Sender allowlist updated", "sender", sender, "allowed", allowed)
	return nil
}

// EmergencyPause force-closes the ticket's listing and marks it not resellable.
func (a *Admin) EmergencyPause(ctx context.Context, caller string, id uint64) error {
	err := a.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := a.authorize(caller); err != nil {
			return err
		}
		if _, err := a.Listings.Close(txCtx, id, listing.ReasonPaused, a.Now()); err != nil {
			return fmt.Errorf("close listing: %w", err)
		}
		if err := a.registry.setResellable(txCtx, id, false); err != nil {
			return err
		}
		return a.emit(txCtx, event.TypeTicketPaused, TicketCorrelationID(id), event.TicketPaused{TicketID: id})
	})
	if err != nil {
		a.rejected("emergency_pause", err, "ticket_id", id)
		return err
	}
	a.Logger.Warn("Ticket paused", "ticket_id", id)
	return nil
}

func (a *Admin) SetResellable(ctx context.Context, caller string, id uint64, flag bool) error {
	err := a.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := a.authorize(caller); err != nil {
			return err
		}
		return a.registry.setResellable(txCtx, id, flag)
	})
	if err != nil {
		a.rejected("set_resellable", err, "ticket_id", id)
		return err
	}
	a.Logger.Info("Ticket resellable flag set", "ticket_id", id, "resellable", flag)
	return nil
}

// Withdraw moves the whole treasury balance to the administrator's account.
func (a *Admin) Withdraw(ctx context.Context, caller string) (payment.Amount, error) {
	var amount payment.Amount
	err := a.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := a.authorize(caller); err != nil {
			return err
		}
		bal, err := a.Ledger.Balance(txCtx, payment.TreasuryAccount)
		if err != nil {
			return fmt.Errorf("treasury balance: %w", err)
		}
		if bal <= 0 {
			return fmt.Errorf("%w: nothing to withdraw", domain.ErrPayment)
		}
		if err := a.credit(txCtx, payment.TreasuryAccount, -bal, payment.KindWithdrawal, nil); err != nil {
			return err
		}
		if err := a.credit(txCtx, caller, bal, payment.KindWithdrawal, nil); err != nil {
			return err
		}
		amount = bal
		return a.emit(txCtx, event.TypeFeesWithdrawn, "admin", event.FeesWithdrawn{Admin: caller, Amount: bal})
	})
	if err != nil {
		a.rejected("withdraw", err)
		return 0, err
	}
	a.Logger.Info("Treasury withdrawn", "admin", caller, "amount", amount)
	return amount, nil
}
