package memory

import (
	"fmt"
	"strings"
)

const recentTurnsInDigest = 5

// EmptyHistoryMarker is the stable summary for a session with no turns.
func EmptyHistoryMarker(sessionID string) string {
	return fmt.Sprintf("No conversation history found for session %s.", sessionID)
}

func digest(sessionID string, turns []Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation summary (session %s, %d turns)\n", sessionID, len(turns))

	if customers := customersDiscussed(turns); len(customers) > 0 {
		b.WriteString("Customers discussed: ")
		b.WriteString(strings.Join(customers, ", "))
		b.WriteString("\n")
	}

	b.WriteString("Recent exchanges:\n")
	start := len(turns) - recentTurnsInDigest
	if start < 0 {
		start = 0
	}
	for _, turn := range turns[start:] {
		fmt.Fprintf(&b, "- user: %s\n", preview(turn.Query))
		fmt.Fprintf(&b, "  assistant: %s\n", preview(turn.Response))
	}
	return strings.TrimRight(b.String(), "\n")
}

// customersDiscussed dedupes customer ids across turns, preserving first
// mention order.
func customersDiscussed(turns []Turn) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, turn := range turns {
		for _, id := range turn.CustomerIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	const max = 100
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
