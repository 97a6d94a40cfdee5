package transcript

import (
	"sort"
	"time"

	"github.com/solstudio/ig-agent-go/internal/model"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn of the conversation as presented to the model.
type Entry struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Assemble merges inbound messages and outbound replies into an ordered,
// role-tagged transcript, oldest first. Inputs may arrive newest-first (the
// repositories and the platform history API both return reverse-chronological
// pages); ordering here is what the model sees. When the merged transcript
// exceeds maxMessages, the oldest entries are dropped.
func Assemble(inbound []model.Message, outbound []model.OutboundMessage, maxMessages int) []Entry {
	entries := make([]Entry, 0, len(inbound)+len(outbound))

	for _, msg := range inbound {
		entries = append(entries, Entry{
			Role:      RoleUser,
			Text:      msg.Text,
			Timestamp: msg.CreatedAt,
		})
	}
	for _, msg := range outbound {
		entries = append(entries, Entry{
			Role:      RoleAssistant,
			Text:      msg.Text,
			Timestamp: msg.CreatedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	if maxMessages > 0 && len(entries) > maxMessages {
		entries = entries[len(entries)-maxMessages:]
	}

	return entries
}
