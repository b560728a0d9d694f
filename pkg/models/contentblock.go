package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConversationRole is the role of a ConversationMessage. Only User and
// Assistant roles appear in a ConversationState; system instructions travel
// as context-message content instead (see internal/agent/format_request.go).
type ConversationRole string

const (
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

// ContentBlockType discriminates the ContentBlock tagged union.
type ContentBlockType string

const (
	ContentBlockText       ContentBlockType = "text"
	ContentBlockToolUse    ContentBlockType = "tool_use"
	ContentBlockToolResult ContentBlockType = "tool_result"
	ContentBlockImage      ContentBlockType = "image"
)

// ContentBlock is the tagged variant Text | ToolUse | ToolResult | Image.
// Exactly one of the pointer fields is populated, selected by Type.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	Text       string           `json:"text,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
	Image      *ImageBlock      `json:"image,omitempty"`
}

// NewTextBlock builds a Text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentBlockText, Text: text}
}

// NewToolUseBlock builds a ToolUse content block.
func NewToolUseBlock(block ToolUseBlock) ContentBlock {
	return ContentBlock{Type: ContentBlockToolUse, ToolUse: &block}
}

// NewToolResultBlock builds a ToolResult content block.
func NewToolResultBlock(block ToolResultBlock) ContentBlock {
	return ContentBlock{Type: ContentBlockToolResult, ToolResult: &block}
}

// NewImageBlock builds an Image content block.
func NewImageBlock(block ImageBlock) ContentBlock {
	return ContentBlock{Type: ContentBlockImage, Image: &block}
}

// ToolUseBlock is the join key between an assistant tool invocation and the
// ToolResultBlock that must eventually answer it (spec: ToolUseBlock).
type ToolUseBlock struct {
	ToolUseID string          `json:"tool_use_id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

// ToolResultStatus is the outcome of a tool invocation as reported back to
// the model.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// ResultContentType discriminates ToolResultBlock.Content entries.
type ResultContentType string

const (
	ResultContentText  ResultContentType = "text"
	ResultContentJSON  ResultContentType = "json"
	ResultContentImage ResultContentType = "image"
)

// ResultContent is one item of a ToolResultBlock's content sequence: a
// tagged Text | Json | Image variant.
type ResultContent struct {
	Type  ResultContentType `json:"type"`
	Text  string            `json:"text,omitempty"`
	JSON  json.RawMessage   `json:"json,omitempty"`
	Image *ImageBlock       `json:"image,omitempty"`
}

// TextResult wraps a plain string as tool-result content, the common case
// for built-in tool output.
func TextResult(text string) ResultContent {
	return ResultContent{Type: ResultContentText, Text: text}
}

// ToolResultBlock carries the outcome of one tool invocation back to the
// model. Invariant: every assistant ToolUse must eventually be followed by a
// ToolResultBlock in the next user message referencing the same ToolUseID
// (enforced by internal/agent's format_request pass, not by this type).
type ToolResultBlock struct {
	ToolUseID string           `json:"tool_use_id"`
	Content   []ResultContent  `json:"content"`
	Status    ToolResultStatus `json:"status"`
}

// ImageBlock is an inline image payload, either a raw-byte/base64 source or
// a provider-hosted reference.
type ImageBlock struct {
	MediaType string `json:"media_type"`
	Data      []byte `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ConversationMessage is the ordered-content-block Message of spec §3: the
// unit the Agent orchestrator appends to ConversationState. It is distinct
// from the flattened, channel-persistence-oriented Message in message.go;
// internal/sessions converts between the two at the storage boundary.
type ConversationMessage struct {
	ID        string           `json:"id,omitempty"`
	Role      ConversationRole `json:"role"`
	Content   []ContentBlock   `json:"content"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
}

// ToolUses returns every ToolUseBlock carried by this message's content, in
// order.
func (m ConversationMessage) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range m.Content {
		if b.Type == ContentBlockToolUse && b.ToolUse != nil {
			out = append(out, *b.ToolUse)
		}
	}
	return out
}

// ToolResults returns every ToolResultBlock carried by this message's
// content, in order.
func (m ConversationMessage) ToolResults() []ToolResultBlock {
	var out []ToolResultBlock
	for _, b := range m.Content {
		if b.Type == ContentBlockToolResult && b.ToolResult != nil {
			out = append(out, *b.ToolResult)
		}
	}
	return out
}

// Text concatenates every Text content block, in order. Used for the
// legacy flattened persistence path and for user-facing summaries.
func (m ConversationMessage) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == ContentBlockText {
			out += b.Text
		}
	}
	return out
}

// ConversationState is an ordered sequence of ConversationMessages plus the
// MaxHistory cap that enforce_conversation_invariants trims against (spec
// §3). The zero value uses DefaultMaxHistory.
type ConversationState struct {
	Messages  []ConversationMessage
	MaxHistory int
}

// DefaultMaxHistory is the effective history cap, reserving two slots for
// the prepended context-message pair (spec §3, §4.6.5).
const DefaultMaxHistory = 250

// ContextSlotReserve is the number of history slots reserved for the
// synthetic context-message pair prepended by format_request.
const ContextSlotReserve = 2

func (c *ConversationState) effectiveMaxHistory() int {
	if c.MaxHistory > 0 {
		return c.MaxHistory
	}
	return DefaultMaxHistory
}

// Push appends a message to the conversation. Messages are append-only once
// pushed; callers must not mutate a message after pushing it.
func (c *ConversationState) Push(msg ConversationMessage) {
	c.Messages = append(c.Messages, msg)
}

// Validate checks the ConversationState invariants from spec §3:
//   - the first message, if any, has role=User and carries no ToolResult.
//   - roles alternate, except that ToolResult-bearing user messages only
//     immediately follow an Assistant message whose tool_use_ids they
//     reference.
//   - length <= effective MAX_HISTORY (reserving ContextSlotReserve slots).
func (c *ConversationState) Validate() error {
	limit := c.effectiveMaxHistory() - ContextSlotReserve
	if limit < 0 {
		limit = 0
	}
	if len(c.Messages) > limit {
		return fmt.Errorf("models: conversation length %d exceeds effective max history %d", len(c.Messages), limit)
	}
	if len(c.Messages) == 0 {
		return nil
	}
	first := c.Messages[0]
	if first.Role != ConversationRoleUser {
		return fmt.Errorf("models: first conversation message must have role=user, got %q", first.Role)
	}
	if len(first.ToolResults()) > 0 {
		return fmt.Errorf("models: first conversation message must not carry a tool result")
	}
	for i := 1; i < len(c.Messages); i++ {
		prev, cur := c.Messages[i-1], c.Messages[i]
		if prev.Role == cur.Role {
			return fmt.Errorf("models: conversation roles must alternate, got %q then %q at index %d", prev.Role, cur.Role, i)
		}
		if cur.Role == ConversationRoleUser && len(cur.ToolResults()) > 0 {
			if prev.Role != ConversationRoleAssistant || len(prev.ToolUses()) == 0 {
				return fmt.Errorf("models: tool-result message at index %d does not follow a tool-use assistant message", i)
			}
		}
	}
	return nil
}
