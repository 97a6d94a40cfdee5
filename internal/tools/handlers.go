package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/agent"
	"github.com/solstudio/ig-agent-go/internal/instagram"
	"github.com/solstudio/ig-agent-go/internal/model"
)

type emptyArgs struct{}

type sendMessageArgs struct {
	Text string `json:"text" jsonschema:"required,description=The message text to send"`
}

type reactArgs struct {
	MessageID string `json:"message_id" jsonschema:"required,description=The platform id of the message to react to"`
	Reaction  string `json:"reaction" jsonschema:"required,enum=love,description=The reaction to send"`
}

type notifyManagerArgs struct {
	Reason   string `json:"reason" jsonschema:"required,description=Why the owner is needed"`
	Summary  string `json:"summary" jsonschema:"required,description=Short summary of the conversation so far"`
	Priority string `json:"priority" jsonschema:"enum=low,enum=normal,enum=high,description=Urgency of the escalation"`
}

type recordBookingArgs struct {
	GuestName   string `json:"guest_name" jsonschema:"required,description=The guest's name"`
	SessionDate string `json:"session_date" jsonschema:"required,description=Session date in YYYY-MM-DD format"`
	Note        string `json:"note" jsonschema:"description=Optional note about the booking"`
}

func (c *Catalog) sendMessage(ctx context.Context, conversationKey, arguments string) error {
	args, err := agent.ParseArguments[sendMessageArgs](arguments)
	if err != nil {
		return err
	}
	if args.Text == "" {
		return fmt.Errorf("text is required")
	}

	mid, sendErr := c.messenger.SendText(ctx, conversationKey, args.Text)

	params := model.CreateOutboundMessageParams{
		ConversationKey: conversationKey,
		Text:            args.Text,
		Status:          model.OutboundStatusSent,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		params.Status = model.OutboundStatusFailed
		params.ErrorMessage = &msg
	} else if mid != "" {
		params.PlatformMID = &mid
	}
	if _, err := c.outbound.Create(ctx, params); err != nil {
		log.Error().Err(err).
			Str("conversationKey", conversationKey).
			Msg("failed to record outbound message")
	}

	return sendErr
}

func (c *Catalog) react(ctx context.Context, conversationKey, arguments string) error {
	args, err := agent.ParseArguments[reactArgs](arguments)
	if err != nil {
		return err
	}
	return c.messenger.SendReaction(ctx, conversationKey, args.MessageID, instagram.Reaction(args.Reaction))
}

func (c *Catalog) notifyManager(ctx context.Context, conversationKey, arguments string) error {
	args, err := agent.ParseArguments[notifyManagerArgs](arguments)
	if err != nil {
		return err
	}

	allowed, err := c.CooldownAllowed(ctx, conversationKey)
	if err != nil {
		return err
	}
	if !allowed {
		log.Info().
			Str("conversationKey", conversationKey).
			Msg("escalation suppressed by notification cooldown")
		return nil
	}

	priority := args.Priority
	if priority == "" {
		priority = "normal"
	}
	text := fmt.Sprintf("DM escalation [%s] for %s\nReason: %s\n%s",
		priority, conversationKey, args.Reason, args.Summary)
	if err := c.notifier.Notify(ctx, text); err != nil {
		return err
	}

	return c.conversations.UpdateLastNotified(ctx, conversationKey, c.now())
}

func (c *Catalog) recordBooking(ctx context.Context, conversationKey, arguments string) error {
	args, err := agent.ParseArguments[recordBookingArgs](arguments)
	if err != nil {
		return err
	}
	if args.GuestName == "" || args.SessionDate == "" {
		return fmt.Errorf("guest_name and session_date are required")
	}
	if _, err := time.Parse("2006-01-02", args.SessionDate); err != nil {
		return fmt.Errorf("session_date must be YYYY-MM-DD: %w", err)
	}

	params := model.CreateBookingParams{
		ConversationKey: conversationKey,
		GuestName:       args.GuestName,
		SessionDate:     args.SessionDate,
	}
	if args.Note != "" {
		params.Note = &args.Note
	}

	booking, err := c.bookings.Create(ctx, params)
	if err != nil {
		return err
	}

	// The booking row is the record of truth; the conversation stamp just
	// marks the guest as a booker.
	if err := c.conversations.UpdateLastBooked(ctx, conversationKey, c.now()); err != nil {
		log.Error().Err(err).
			Str("conversationKey", conversationKey).
			Str("bookingId", booking.ID).
			Msg("failed to stamp booking on conversation")
	}

	log.Info().
		Str("conversationKey", conversationKey).
		Str("bookingId", booking.ID).
		Str("sessionDate", booking.SessionDate).
		Msg("booking recorded")
	return nil
}

func (c *Catalog) checkCooldown(ctx context.Context, conversationKey, _ string) error {
	allowed, err := c.CooldownAllowed(ctx, conversationKey)
	if err != nil {
		return err
	}
	log.Info().
		Str("conversationKey", conversationKey).
		Bool("allowed", allowed).
		Msg("notification cooldown checked")
	return nil
}

func (c *Catalog) getSchedule(ctx context.Context, conversationKey, _ string) error {
	slots, err := c.schedules.Upcoming(ctx)
	if err != nil {
		return err
	}
	log.Debug().
		Str("conversationKey", conversationKey).
		Int("slots", len(slots)).
		Msg("schedule fetched")
	return nil
}

func (c *Catalog) noAction(_ context.Context, conversationKey, _ string) error {
	log.Debug().Str("conversationKey", conversationKey).Msg("no action taken")
	return nil
}

// CooldownAllowed reports whether the owner may be notified about this
// conversation again: true once the cooldown window has elapsed since the
// last recorded notification, or when none was ever recorded.
func (c *Catalog) CooldownAllowed(ctx context.Context, conversationKey string) (bool, error) {
	conv, err := c.conversations.FindByKey(ctx, conversationKey)
	if err != nil {
		return false, err
	}
	if conv == nil || conv.LastNotifiedAt == nil {
		return true, nil
	}
	return c.now().Sub(*conv.LastNotifiedAt) >= c.cooldown, nil
}
