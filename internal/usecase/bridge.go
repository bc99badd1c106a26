package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reflights/internal/domain"
	"reflights/internal/domain/event"
	"reflights/internal/domain/inbox"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/relocation"
)

// Bridge moves tickets between domains: burn here and send on the way out,
// verify and recreate on the way in.
//
// The outbound burn and the hand-off to the transport commit together, so a
// failed send leaves the ticket where it was. Nothing confirms delivery
// afterwards: if the transport loses a committed message the ticket exists
// in neither domain, and the relocation record is all that remains of it.
type Bridge struct {
	*core
	registry *Registry
}

type RelocationParams struct {
	TicketID      uint64
	Destination   string
	Recipient     string
	Caller        string
	AttachedFunds payment.Amount
}

type RelocationResult struct {
	MessageID string         `json:"message_id"`
	Fee       payment.Amount `json:"fee"`
	Refund    payment.Amount `json:"refund"`
}

// QuoteRelocation returns the transport fee InitiateRelocation would charge now.
func (b *Bridge) QuoteRelocation(ctx context.Context, id uint64, destination, recipient string) (payment.Amount, error) {
	t, err := b.Tickets.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	data, err := relocation.Encode(relocation.NewPayload(t, b.settings.DomainID, destination, recipient))
	if err != nil {
		return 0, err
	}
	fee, err := b.Channel.QuoteFee(ctx, destination, data)
	if err != nil {
		return 0, fmt.Errorf("%w: quote fee: %w", domain.ErrTransport, err)
	}
	return fee, nil
}

func (b *Bridge) InitiateRelocation(ctx context.Context, params RelocationParams) (RelocationResult, error) {
	params.Destination = strings.TrimSpace(params.Destination)
	params.Recipient = strings.TrimSpace(params.Recipient)

	var res RelocationResult
	err := b.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := checkIdentity("recipient", params.Recipient); err != nil {
			return err
		}
		if params.Destination == b.settings.DomainID {
			return fmt.Errorf("%w: destination is the local domain", domain.ErrValidation)
		}

		t, err := b.Tickets.Get(txCtx, params.TicketID)
		if err != nil {
			return err
		}
		if t.Owner != params.Caller {
			return fmt.Errorf("%w: %s does not own ticket %d", domain.ErrAuthorization, params.Caller, params.TicketID)
		}
		allowed, err := b.Allowlist.DomainAllowed(txCtx, params.Destination)
		if err != nil {
			return fmt.Errorf("check destination allowlist: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: %q", domain.ErrChainNotAllowlisted, params.Destination)
		}
		if t.Used {
			return fmt.Errorf("%w: %d", domain.ErrAlreadyUsed, params.TicketID)
		}

		now := b.Now()
		if _, err := b.Listings.Close(txCtx, params.TicketID, listing.ReasonRelocated, now); err != nil {
			return fmt.Errorf("close listing: %w", err)
		}

		data, err := relocation.Encode(relocation.NewPayload(t, b.settings.DomainID, params.Destination, params.Recipient))
		if err != nil {
			return err
		}
		fee, err := b.Channel.QuoteFee(txCtx, params.Destination, data)
		if err != nil {
			return fmt.Errorf("%w: quote fee: %w", domain.ErrTransport, err)
		}
		if params.AttachedFunds < fee {
			return fmt.Errorf("%w: attached %d, fee is %d", domain.ErrInsufficientFee, params.AttachedFunds, fee)
		}

		if _, err := b.registry.destroy(txCtx, params.TicketID, params.Caller); err != nil {
			return err
		}
		messageID, err := b.Channel.Send(txCtx, params.Destination, data, fee)
		if err != nil {
			if errors.Is(err, domain.ErrTransport) {
				return err
			}
			return fmt.Errorf("%w: send: %w", domain.ErrTransport, err)
		}

		if err := b.credit(txCtx, payment.TransportAccount, fee, payment.KindTransportFee, idRef(params.TicketID)); err != nil {
			return err
		}
		refund := params.AttachedFunds - fee
		if err := b.credit(txCtx, params.Caller, refund, payment.KindRelocateRefund, idRef(params.TicketID)); err != nil {
			return err
		}

		if err := b.Relocations.Create(txCtx, &relocation.Record{
			MessageID:   messageID,
			TicketID:    params.TicketID,
			Source:      b.settings.DomainID,
			Destination: params.Destination,
			Owner:       params.Caller,
			Recipient:   params.Recipient,
			Fee:         fee,
			Payload:     data,
			Status:      relocation.StatusSent,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("record relocation: %w", err)
		}

		res = RelocationResult{MessageID: messageID, Fee: fee, Refund: refund}
		return b.emit(txCtx, event.TypeRelocationInitiated, TicketCorrelationID(params.TicketID), event.RelocationInitiated{
			TicketID:    params.TicketID,
			MessageID:   messageID,
			Destination: params.Destination,
			Recipient:   params.Recipient,
			Fee:         fee,
		})
	})
	if err != nil {
		b.rejected("initiate_relocation", err, "ticket_id", params.TicketID, "destination", params.Destination)
		return RelocationResult{}, err
	}

	relocationsInitiated.Inc()
	b.Logger.Info("Relocation initiated", "ticket_id", params.TicketID, "destination", params.Destination, "message_id", res.MessageID, "fee", res.Fee)
	return res, nil
}

// OnMessageReceived applies an inbound relocation. A message id that was
// already applied is acknowledged without effect; any other message for an
// id that is live here is rejected with domain.ErrIDCollision.
func (b *Bridge) OnMessageReceived(ctx context.Context, in relocation.Inbound) error {
	var (
		p         relocation.Payload
		duplicate bool
	)
	err := b.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		allowed, err := b.Allowlist.SenderAllowed(txCtx, in.Sender)
		if err != nil {
			return fmt.Errorf("check sender allowlist: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: %q", domain.ErrSenderNotAllowlisted, in.Sender)
		}
		if strings.TrimSpace(in.MessageID) == "" {
			return fmt.Errorf("%w: message id is required", domain.ErrValidation)
		}

		p, err = relocation.Decode(in.Payload)
		if err != nil {
			return err
		}
		if err := checkIdentity("recipient", p.Recipient); err != nil {
			return err
		}
		if p.Destination != b.settings.DomainID {
			return fmt.Errorf("%w: message addressed to %q", domain.ErrValidation, p.Destination)
		}
		if in.SourceDomain != "" && p.Source != in.SourceDomain {
			return fmt.Errorf("%w: payload source %q does not match %q", domain.ErrDeserialization, p.Source, in.SourceDomain)
		}

		correlationID := TicketCorrelationID(p.TicketID)
		isNew, err := b.Inbox.SaveIfNotExists(txCtx, inbox.ConsumerBridge, in.MessageID, event.TypeRelocationMessage, correlationID)
		if err != nil {
			return fmt.Errorf("inbox save: %w", err)
		}
		if !isNew {
			duplicate = true
			return nil
		}

		if err := b.registry.recreate(txCtx, p.Ticket()); err != nil {
			return err
		}
		return b.emit(txCtx, event.TypeMessageReceived, correlationID, event.MessageReceived{
			TicketID:     p.TicketID,
			MessageID:    in.MessageID,
			SourceDomain: in.SourceDomain,
			Recipient:    p.Recipient,
		})
	})
	if err != nil {
		messagesReceived.WithLabelValues("rejected").Inc()
		b.rejected("receive_message", err, "message_id", in.MessageID, "source", in.SourceDomain)
		return err
	}
	if duplicate {
		messagesReceived.WithLabelValues("duplicate").Inc()
		b.Logger.Info("Relocation message already applied", "message_id", in.MessageID, "ticket_id", p.TicketID)
		return nil
	}

	messagesReceived.WithLabelValues("applied").Inc()
	b.Logger.Info("Ticket received", "ticket_id", p.TicketID, "owner", p.Recipient, "message_id", in.MessageID, "source", in.SourceDomain)
	return nil
}

// GetRelocation returns the source-side record of an outbound relocation.
func (b *Bridge) GetRelocation(ctx context.Context, messageID string) (*relocation.Record, error) {
	rec, err := b.Relocations.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get relocation: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: relocation %s", domain.ErrNotFound, messageID)
	}
	return rec, nil
}
