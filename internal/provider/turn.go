package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nodecanvas/askgate/internal/integration"
)

// Shape names the wire form a provider turn arrived in.
type Shape string

const (
	ShapeText          Shape = "text"
	ShapeContentBlocks Shape = "content_blocks"
	ShapeFlatCalls     Shape = "flat_calls"
)

const stopReasonToolUse = "tool_use"

// Turn is a provider response: ContentBlockTurn, FlatCallTurn or TextTurn.
type Turn interface {
	Shape() Shape
	// Text is the plain answer text carried by the turn, possibly empty.
	Text() string
	// ToolCalls lists the requested tool calls in request order.
	ToolCalls() []integration.ToolCallRequest
	// Reserialize returns the messages that continue the conversation
	// after the given results, in the form this turn's provider expects.
	Reserialize(results []integration.ToolCallResult) []Message
}

// TextTurn is a final answer with no tool use.
type TextTurn struct {
	text string
}

func (t *TextTurn) Shape() Shape                                       { return ShapeText }
func (t *TextTurn) Text() string                                       { return t.text }
func (t *TextTurn) ToolCalls() []integration.ToolCallRequest           { return nil }
func (t *TextTurn) Reserialize([]integration.ToolCallResult) []Message { return nil }

// ContentBlockTurn stopped for tool_use and carries content blocks.
type ContentBlockTurn struct {
	text   string
	blocks []json.RawMessage
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (t *ContentBlockTurn) Shape() Shape { return ShapeContentBlocks }
func (t *ContentBlockTurn) Text() string { return t.text }

func (t *ContentBlockTurn) ToolCalls() []integration.ToolCallRequest {
	var calls []integration.ToolCallRequest
	for _, raw := range t.blocks {
		var b contentBlock
		if err := json.Unmarshal(raw, &b); err != nil || b.Type != "tool_use" {
			continue
		}
		calls = append(calls, integration.ToolCallRequest{
			ID:    b.ID,
			Name:  b.Name,
			Input: decodeInput(b.Input),
		})
	}
	return calls
}

// Reserialize echoes the original blocks as the assistant message, then
// answers them with tool_result blocks in a user message.
func (t *ContentBlockTurn) Reserialize(results []integration.ToolCallResult) []Message {
	blocks := make([]ToolResultBlock, len(results))
	for i, r := range results {
		blocks[i] = ToolResultBlock{
			Type:      "tool_result",
			ToolUseID: r.ToolCallID,
			Content:   r.Result,
			IsError:   r.IsError,
		}
	}
	return []Message{
		{Role: RoleAssistant, Content: t.blocks},
		{Role: RoleUser, Content: blocks},
	}
}

// FlatCallTurn carries a toolCalls array of {id, name, input}.
type FlatCallTurn struct {
	text  string
	calls []integration.ToolCallRequest
}

func (t *FlatCallTurn) Shape() Shape { return ShapeFlatCalls }
func (t *FlatCallTurn) Text() string { return t.text }

func (t *FlatCallTurn) ToolCalls() []integration.ToolCallRequest {
	out := make([]integration.ToolCallRequest, len(t.calls))
	copy(out, t.calls)
	return out
}

// Reserialize synthesizes the assistant tool_calls message followed by one
// tool message per result.
func (t *FlatCallTurn) Reserialize(results []integration.ToolCallResult) []Message {
	wire := make([]WireToolCall, len(t.calls))
	for i, c := range t.calls {
		input := c.Input
		if input == nil {
			input = map[string]interface{}{}
		}
		args, _ := json.Marshal(input)
		wire[i] = WireToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: WireFunction{Name: c.Name, Arguments: string(args)},
		}
	}
	msgs := make([]Message, 0, len(results)+1)
	msgs = append(msgs, Message{Role: RoleAssistant, Content: t.text, ToolCalls: wire})
	for _, r := range results {
		msgs = append(msgs, Message{Role: RoleTool, ToolCallID: r.ToolCallID, Content: r.Result})
	}
	return msgs
}

// NewTextTurn builds a final-answer turn.
func NewTextTurn(text string) *TextTurn {
	return &TextTurn{text: text}
}

// NewContentBlockTurn builds a tool_use turn from raw content blocks.
func NewContentBlockTurn(text string, blocks []json.RawMessage) *ContentBlockTurn {
	return &ContentBlockTurn{text: text, blocks: blocks}
}

// NewFlatCallTurn builds a turn from already-normalized tool calls.
func NewFlatCallTurn(text string, calls []integration.ToolCallRequest) *FlatCallTurn {
	return &FlatCallTurn{text: text, calls: calls}
}

type turnResponse struct {
	Content       json.RawMessage   `json:"content"`
	Message       string            `json:"message"`
	StopReason    string            `json:"stop_reason"`
	ContentBlocks []json.RawMessage `json:"contentBlocks"`
	ToolCalls     []flatCall        `json:"toolCalls"`
	Error         string            `json:"error"`
}

type flatCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// DecodeTurn classifies a provider route response body.
func DecodeTurn(data []byte) (Turn, error) {
	var resp turnResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal turn: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("provider returned error: %s", resp.Error)
	}

	text, contentBlocks := splitContent(resp.Content)
	blocks := resp.ContentBlocks
	if len(blocks) == 0 {
		blocks = contentBlocks
	}
	if text == "" {
		text = resp.Message
	}
	if text == "" {
		text = joinTextBlocks(blocks)
	}

	if resp.StopReason == stopReasonToolUse && len(blocks) > 0 {
		return NewContentBlockTurn(text, blocks), nil
	}
	if len(resp.ToolCalls) > 0 {
		calls := make([]integration.ToolCallRequest, len(resp.ToolCalls))
		for i, c := range resp.ToolCalls {
			calls[i] = integration.ToolCallRequest{ID: c.ID, Name: c.Name, Input: decodeInput(c.Input)}
		}
		return NewFlatCallTurn(text, calls), nil
	}
	return NewTextTurn(text), nil
}

// splitContent reads "content" as either answer text or an array of blocks.
func splitContent(raw json.RawMessage) (string, []json.RawMessage) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return "", blocks
	}
	return "", nil
}

func joinTextBlocks(blocks []json.RawMessage) string {
	var parts []string
	for _, raw := range blocks {
		var b contentBlock
		if err := json.Unmarshal(raw, &b); err == nil && b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// decodeInput accepts an input object or a JSON-encoded string of one.
func decodeInput(raw json.RawMessage) map[string]interface{} {
	input := map[string]interface{}{}
	if len(raw) == 0 {
		return input
	}
	if err := json.Unmarshal(raw, &input); err == nil {
		if input == nil {
			input = map[string]interface{}{}
		}
		return input
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		decoded := map[string]interface{}{}
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return decoded
		}
	}
	return map[string]interface{}{}
}
