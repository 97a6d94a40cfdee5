package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/solstudio/ig-agent-go/internal/agent"
	apperrors "github.com/solstudio/ig-agent-go/internal/errors"
	"github.com/solstudio/ig-agent-go/internal/instagram"
	"github.com/solstudio/ig-agent-go/internal/notify"
	"github.com/solstudio/ig-agent-go/internal/repository"
	"github.com/solstudio/ig-agent-go/internal/schedule"
)

// Name identifies one tool in the closed catalog. The model selects a
// tool by name; dispatch is a lookup into a fixed table built at startup.
type Name string

const (
	NameSendMessage   Name = "send_message"
	NameReact         Name = "react_to_message"
	NameNotifyManager Name = "notify_manager"
	NameRecordBooking Name = "record_booking"
	NameCheckCooldown Name = "check_notification_cooldown"
	NameGetSchedule   Name = "get_schedule"
	NameNoAction      Name = "no_action"
)

// Messenger is the outbound side of the messaging platform the tools use.
type Messenger interface {
	SendText(ctx context.Context, recipientID, text string) (string, error)
	SendReaction(ctx context.Context, recipientID, messageID string, reaction instagram.Reaction) error
}

type handler func(ctx context.Context, conversationKey, arguments string) error

type entry struct {
	def agent.Tool
	run handler
}

// Catalog is the fixed set of capabilities exposed to the model. Built
// once at startup; safe for concurrent use.
type Catalog struct {
	messenger     Messenger
	notifier      notify.Notifier
	schedules     schedule.Provider
	conversations repository.ConversationRepository
	bookings      repository.BookingRepository
	outbound      repository.OutboundMessageRepository

	cooldown time.Duration
	now      func() time.Time

	buildOnce sync.Once
	entries   map[Name]entry
	defs      []agent.Tool
}

type CatalogParams struct {
	Messenger     Messenger
	Notifier      notify.Notifier
	Schedules     schedule.Provider
	Conversations repository.ConversationRepository
	Bookings      repository.BookingRepository
	Outbound      repository.OutboundMessageRepository
	Cooldown      time.Duration
}

func NewCatalog(params CatalogParams) *Catalog {
	return &Catalog{
		messenger:     params.Messenger,
		notifier:      params.Notifier,
		schedules:     params.Schedules,
		conversations: params.Conversations,
		bookings:      params.Bookings,
		outbound:      params.Outbound,
		cooldown:      params.Cooldown,
		now:           time.Now,
	}
}

// Definitions returns the tool schemas offered to the model.
func (c *Catalog) Definitions() []agent.Tool {
	c.build()
	return c.defs
}

// Execute runs one tool call the model requested.
func (c *Catalog) Execute(ctx context.Context, conversationKey string, call agent.ToolCall) error {
	c.build()
	e, ok := c.entries[Name(call.Name)]
	if !ok {
		return apperrors.ToolFailed(call.Name, fmt.Errorf("unknown tool"))
	}
	if err := e.run(ctx, conversationKey, call.Arguments); err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.ToolFailed(call.Name, err)
	}
	return nil
}

func (c *Catalog) build() {
	c.buildOnce.Do(func() {
		c.entries = map[Name]entry{
			NameSendMessage: {
				def: agent.Tool{
					Name:        string(NameSendMessage),
					Description: "Send a text reply to the guest in this conversation.",
					Parameters:  schemaFor(&sendMessageArgs{}),
				},
				run: c.sendMessage,
			},
			NameReact: {
				def: agent.Tool{
					Name:        string(NameReact),
					Description: "React to one of the guest's messages instead of replying with text.",
					Parameters:  schemaFor(&reactArgs{}),
				},
				run: c.react,
			},
			NameNotifyManager: {
				def: agent.Tool{
					Name:        string(NameNotifyManager),
					Description: "Escalate this conversation to the studio owner. Subject to a per-guest cooldown.",
					Parameters:  schemaFor(&notifyManagerArgs{}),
				},
				run: c.notifyManager,
			},
			NameRecordBooking: {
				def: agent.Tool{
					Name:        string(NameRecordBooking),
					Description: "Record a booking the guest has confirmed.",
					Parameters:  schemaFor(&recordBookingArgs{}),
				},
				run: c.recordBooking,
			},
			NameCheckCooldown: {
				def: agent.Tool{
					Name:        string(NameCheckCooldown),
					Description: "Check whether the owner may be notified about this guest again yet.",
					Parameters:  schemaFor(&emptyArgs{}),
				},
				run: c.checkCooldown,
			},
			NameGetSchedule: {
				def: agent.Tool{
					Name:        string(NameGetSchedule),
					Description: "Fetch the upcoming session schedule.",
					Parameters:  schemaFor(&emptyArgs{}),
				},
				run: c.getSchedule,
			},
			NameNoAction: {
				def: agent.Tool{
					Name:        string(NameNoAction),
					Description: "Do nothing. Use when the conversation needs no response.",
					Parameters:  schemaFor(&emptyArgs{}),
				},
				run: c.noAction,
			},
		}

		for _, name := range []Name{
			NameSendMessage, NameReact, NameNotifyManager, NameRecordBooking,
			NameCheckCooldown, NameGetSchedule, NameNoAction,
		} {
			c.defs = append(c.defs, c.entries[name].def)
		}
	})
}

func schemaFor(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}
