package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nodecanvas/askgate/internal/integration"
)

// ShortcutPolicy decides when self-describing tool results end the loop
// without another provider turn.
type ShortcutPolicy string

const (
	// ShortcutFirst inspects only the first non-error result.
	ShortcutFirst ShortcutPolicy = "first"
	// ShortcutAll fires only when every non-error result is self-describing,
	// and confirms each of them.
	ShortcutAll ShortcutPolicy = "all"
	ShortcutOff ShortcutPolicy = "off"
)

func (p ShortcutPolicy) Valid() bool {
	switch p {
	case ShortcutFirst, ShortcutAll, ShortcutOff:
		return true
	}
	return false
}

// Shortcut kinds, used as metric labels.
const (
	KindEmail    = "email"
	KindCalendar = "calendar"
)

// Confirmation is a synthesized answer for a result whose outcome is already
// fully known.
type Confirmation struct {
	Kind string
	Text string
}

type shortcutPayload struct {
	Sent      bool            `json:"sent"`
	MessageID string          `json:"messageId"`
	Created   bool            `json:"created"`
	Event     json.RawMessage `json:"event"`
}

type eventSummary struct {
	ID       string          `json:"id"`
	Summary  string          `json:"summary"`
	HTMLLink string          `json:"htmlLink"`
	Start    json.RawMessage `json:"start"`
}

// confirm recognizes {sent:true, messageId} and {created:true, event}.
func confirm(result integration.ToolCallResult) (Confirmation, bool) {
	var p shortcutPayload
	if err := json.Unmarshal([]byte(result.Result), &p); err != nil {
		return Confirmation{}, false
	}
	switch {
	case p.Sent && p.MessageID != "":
		return Confirmation{
			Kind: KindEmail,
			Text: fmt.Sprintf("Email sent successfully (message ID: %s).", p.MessageID),
		}, true
	case p.Created && len(p.Event) > 0 && string(p.Event) != "null":
		return Confirmation{Kind: KindCalendar, Text: eventConfirmation(p.Event)}, true
	}
	return Confirmation{}, false
}

func eventConfirmation(raw json.RawMessage) string {
	var ev eventSummary
	_ = json.Unmarshal(raw, &ev)

	var sb strings.Builder
	if ev.Summary != "" {
		fmt.Fprintf(&sb, "Calendar event %q created", ev.Summary)
	} else {
		sb.WriteString("Calendar event created")
	}
	if when := eventStart(ev.Start); when != "" {
		fmt.Fprintf(&sb, " for %s", when)
	}
	sb.WriteString(".")
	if ev.HTMLLink != "" {
		fmt.Fprintf(&sb, " Link: %s", ev.HTMLLink)
	} else if ev.ID != "" {
		fmt.Fprintf(&sb, " (event ID: %s)", ev.ID)
	}
	return sb.String()
}

// eventStart accepts a plain string or a Google-style {dateTime|date} object.
func eventStart(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.DateTime != "" {
			return obj.DateTime
		}
		return obj.Date
	}
	return ""
}

// Shortcut applies the policy to a turn's raw results. It reports the
// confirmations that make up the final answer, or false when the loop
// should go on.
func Shortcut(policy ShortcutPolicy, results []integration.ToolCallResult) ([]Confirmation, bool) {
	if policy == ShortcutOff {
		return nil, false
	}

	var confirmations []Confirmation
	for _, r := range results {
		if r.IsError {
			continue
		}
		c, ok := confirm(r)
		if policy == ShortcutFirst {
			if !ok {
				return nil, false
			}
			return []Confirmation{c}, true
		}
		if !ok {
			return nil, false
		}
		confirmations = append(confirmations, c)
	}
	return confirmations, len(confirmations) > 0
}

// Answer joins confirmations into the final answer text.
func Answer(confirmations []Confirmation) string {
	texts := make([]string, len(confirmations))
	for i, c := range confirmations {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n")
}
