package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstudio/ig-agent-go/internal/model"
)

func inboundAt(text string, at time.Time) model.Message {
	return model.Message{Text: text, CreatedAt: at}
}

func outboundAt(text string, at time.Time) model.OutboundMessage {
	return model.OutboundMessage{Text: text, CreatedAt: at}
}

func TestAssemble(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("orders oldest first regardless of input order", func(t *testing.T) {
		// Repositories return newest-first pages.
		inbound := []model.Message{
			inboundAt("can I join?", base.Add(3*time.Second)),
			inboundAt("hi", base),
		}
		outbound := []model.OutboundMessage{
			outboundAt("hey! welcome", base.Add(1*time.Second)),
		}

		entries := Assemble(inbound, outbound, 0)
		require.Len(t, entries, 3)
		assert.Equal(t, "hi", entries[0].Text)
		assert.Equal(t, RoleUser, entries[0].Role)
		assert.Equal(t, "hey! welcome", entries[1].Text)
		assert.Equal(t, RoleAssistant, entries[1].Role)
		assert.Equal(t, "can I join?", entries[2].Text)
	})

	t.Run("drops oldest entries beyond the limit", func(t *testing.T) {
		var inbound []model.Message
		for i := 0; i < 10; i++ {
			inbound = append(inbound, inboundAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second)))
		}

		entries := Assemble(inbound, nil, 4)
		require.Len(t, entries, 4)
		assert.Equal(t, "g", entries[0].Text)
		assert.Equal(t, "j", entries[3].Text)
	})

	t.Run("empty inputs produce empty transcript", func(t *testing.T) {
		assert.Empty(t, Assemble(nil, nil, 40))
	})

	t.Run("does not deduplicate", func(t *testing.T) {
		inbound := []model.Message{
			inboundAt("hello", base),
			inboundAt("hello", base.Add(time.Second)),
		}
		entries := Assemble(inbound, nil, 0)
		assert.Len(t, entries, 2)
	})
}
