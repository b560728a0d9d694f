package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgecode/forge/pkg/models"
)

// DummyToolName is the reserved tool name a ToolUseBlock is rewritten to when
// its original name no longer resolves against the current tool set (spec
// §4.6.5).
const DummyToolName = "DUMMY_TOOL_NAME"

// dummyToolDescription explains, to the model, why a tool call it sees in
// history can no longer be acted on.
const dummyToolDescription = "This tool no longer exists. The invocation is preserved in conversation history for context only and cannot be re-executed."

// MaxResourceFileLength bounds the content one CONTEXT_ENTRY resource block
// may contribute (spec §4.6.5).
const MaxResourceFileLength = 32 * 1024

// resourceTruncatedMarker is appended, literally, to a resource file whose
// content exceeds MaxResourceFileLength (spec §4.6.5).
const resourceTruncatedMarker = "...truncated"

// ToolSpec is the minimal shape format_request sends the provider for each
// available tool: name, description, and JSON Schema parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ToolSpecsFromTools projects the runtime's registered Tools into ToolSpecs.
func ToolSpecsFromTools(tools []Tool) []ToolSpec {
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, ToolSpec{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	return specs
}

// DummyToolSpec is the stub tool-spec injected whenever at least one
// ToolUseBlock in history was rewritten to DummyToolName (spec §4.6.5).
func DummyToolSpec() ToolSpec {
	return ToolSpec{
		Name:        DummyToolName,
		Description: dummyToolDescription,
		Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
	}
}

func toolNameSet(specs []ToolSpec) map[string]bool {
	set := make(map[string]bool, len(specs))
	for _, s := range specs {
		set[s.Name] = true
	}
	return set
}

// EnforceConversationInvariants is the pure function named in spec §3/§8:
// given a raw history and the currently valid tool names, it rewrites
// unknown ToolUse names to DummyToolName, reconciles ToolUse/ToolResult
// pairing (unwrapping orphan results, synthesizing cancelled results for
// unanswered uses), and trims the front of history to fit maxHistory. It is
// idempotent: applying it twice yields the same result as applying it once.
func EnforceConversationInvariants(messages []models.ConversationMessage, toolNames map[string]bool, maxHistory int) []models.ConversationMessage {
	out := rewriteDummyToolNames(messages, toolNames)
	out = reconcileToolPairs(out)
	out = trimToMaxHistory(out, maxHistory)
	return out
}

// rewriteDummyToolNames returns a copy of messages with every ToolUseBlock
// whose name is not in toolNames renamed to DummyToolName.
func rewriteDummyToolNames(messages []models.ConversationMessage, toolNames map[string]bool) []models.ConversationMessage {
	out := make([]models.ConversationMessage, len(messages))
	copy(out, messages)
	for i := range out {
		content := append([]models.ContentBlock(nil), out[i].Content...)
		for bi, b := range content {
			if b.Type != models.ContentBlockToolUse || b.ToolUse == nil {
				continue
			}
			if b.ToolUse.Name == DummyToolName || toolNames[b.ToolUse.Name] {
				continue
			}
			renamed := *b.ToolUse
			renamed.Name = DummyToolName
			content[bi] = models.NewToolUseBlock(renamed)
		}
		out[i].Content = content
	}
	return out
}

// reconcileToolPairs walks consecutive (assistant, user) message pairs: any
// user-side ToolResult whose tool_use_id has no matching assistant-side
// ToolUse is unwrapped into equivalent Text/Image content blocks, and any
// assistant ToolUse left unanswered gets a synthesized "cancelled"
// ToolResult appended to the following user message (creating one if the
// assistant message is the last in history).
func reconcileToolPairs(messages []models.ConversationMessage) []models.ConversationMessage {
	out := make([]models.ConversationMessage, len(messages))
	copy(out, messages)
	for i := range out {
		out[i].Content = append([]models.ContentBlock(nil), out[i].Content...)
	}

	for i := 0; i < len(out); i++ {
		if out[i].Role != models.ConversationRoleAssistant {
			continue
		}
		toolUses := out[i].ToolUses()
		if len(toolUses) == 0 {
			continue
		}
		useIDs := make(map[string]bool, len(toolUses))
		for _, tu := range toolUses {
			useIDs[tu.ToolUseID] = true
		}

		hasUserNext := i+1 < len(out) && out[i+1].Role == models.ConversationRoleUser
		matched := make(map[string]bool, len(toolUses))

		if hasUserNext {
			rebuilt := make([]models.ContentBlock, 0, len(out[i+1].Content))
			for _, b := range out[i+1].Content {
				if b.Type == models.ContentBlockToolResult && b.ToolResult != nil {
					if useIDs[b.ToolResult.ToolUseID] {
						matched[b.ToolResult.ToolUseID] = true
						rebuilt = append(rebuilt, b)
						continue
					}
					rebuilt = append(rebuilt, unwrapOrphanToolResult(*b.ToolResult)...)
					continue
				}
				rebuilt = append(rebuilt, b)
			}
			out[i+1].Content = rebuilt
		}

		var cancelled []models.ContentBlock
		for _, tu := range toolUses {
			if matched[tu.ToolUseID] {
				continue
			}
			cancelled = append(cancelled, models.NewToolResultBlock(models.ToolResultBlock{
				ToolUseID: tu.ToolUseID,
				Status:    models.ToolResultError,
				Content:   []models.ResultContent{models.TextResult("cancelled")},
			}))
		}
		if len(cancelled) == 0 {
			continue
		}
		if hasUserNext {
			out[i+1].Content = append(out[i+1].Content, cancelled...)
			continue
		}
		synth := models.ConversationMessage{Role: models.ConversationRoleUser, Content: cancelled}
		tail := append([]models.ConversationMessage{synth}, out[i+1:]...)
		out = append(out[:i+1:i+1], tail...)
	}
	return out
}

// unwrapOrphanToolResult converts a ToolResultBlock with no matching
// ToolUse into the equivalent plain Text/Image content blocks (spec
// §4.6.5: "replace their content with equivalent Text/Image").
func unwrapOrphanToolResult(tr models.ToolResultBlock) []models.ContentBlock {
	if len(tr.Content) == 0 {
		return []models.ContentBlock{models.NewTextBlock("")}
	}
	out := make([]models.ContentBlock, 0, len(tr.Content))
	for _, c := range tr.Content {
		if c.Type == models.ResultContentImage && c.Image != nil {
			out = append(out, models.NewImageBlock(*c.Image))
			continue
		}
		out = append(out, models.NewTextBlock(c.Text))
	}
	return out
}

// trimToMaxHistory drops messages from the front until the remaining length
// is at most maxHistory-ContextSlotReserve and the front message satisfies
// the first-message invariant (role=User, no ToolResult content).
func trimToMaxHistory(messages []models.ConversationMessage, maxHistory int) []models.ConversationMessage {
	limit := maxHistory - models.ContextSlotReserve
	if limit < 0 {
		limit = 0
	}
	out := messages
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	for len(out) > 0 {
		first := out[0]
		if first.Role == models.ConversationRoleUser && len(first.ToolResults()) == 0 {
			break
		}
		out = out[1:]
	}
	return out
}

// ResourceFile is a resolved file://PATH or file://GLOB resource entry
// (spec §4.6.5), its content already truncated to MaxResourceFileLength.
type ResourceFile struct {
	Path    string
	Content string
}

// ResolveResources expands every file://PATH and file://GLOB resource
// reference into its resolved files. A glob matching no files contributes
// nothing (spec §8 boundary behavior); unreadable files are skipped rather
// than failing the whole request.
func ResolveResources(refs []models.ResourceRef) ([]ResourceFile, error) {
	var files []ResourceFile
	for _, ref := range refs {
		raw := strings.TrimPrefix(string(ref), "file://")
		if raw == string(ref) {
			continue
		}

		var matches []string
		if strings.ContainsAny(raw, "*?[") {
			var err error
			matches, err = filepath.Glob(raw)
			if err != nil {
				return nil, fmt.Errorf("agent: invalid resource glob %q: %w", raw, err)
			}
		} else {
			matches = []string{raw}
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				continue
			}
			content := string(data)
			if len(content) > MaxResourceFileLength {
				content = content[:MaxResourceFileLength] + resourceTruncatedMarker
			}
			files = append(files, ResourceFile{Path: m, Content: content})
		}
	}
	return files, nil
}

// contextEntryBlock wraps one CONTEXT_ENTRY item (spec §4.6.5) as a Text
// content block, tagged with its source so the model can attribute it.
func contextEntryBlock(source, content string) models.ContentBlock {
	return models.NewTextBlock(fmt.Sprintf("<context source=%q>\n%s\n</context>", source, content))
}

// BuildContextMessages assembles the synthetic (user, assistant) message
// pair prepended to every request (spec §4.6.5 step 3): the user message
// carries the system-prompt instruction, one CONTEXT_ENTRY per cached
// AgentSpawn hook output, and one CONTEXT_ENTRY per resolved resource file;
// the assistant message is a fixed acknowledgement.
func BuildContextMessages(systemPrompt string, agentSpawnOutputs []string, resources []ResourceFile) (user models.ConversationMessage, assistant models.ConversationMessage) {
	var blocks []models.ContentBlock
	if strings.TrimSpace(systemPrompt) != "" {
		blocks = append(blocks, models.NewTextBlock("Follow this instruction: "+systemPrompt))
	}
	for _, out := range agentSpawnOutputs {
		if strings.TrimSpace(out) == "" {
			continue
		}
		blocks = append(blocks, contextEntryBlock("agent_spawn_hook", out))
	}
	for _, res := range resources {
		blocks = append(blocks, contextEntryBlock(res.Path, res.Content))
	}
	user = models.ConversationMessage{Role: models.ConversationRoleUser, Content: blocks}
	assistant = models.ConversationMessage{
		Role:    models.ConversationRoleAssistant,
		Content: []models.ContentBlock{models.NewTextBlock("Understood.")},
	}
	return user, assistant
}

// RequestArgs is the outgoing SendRequestArgs of spec §4.6.5: the fully
// formatted message list, the sanitized tool-spec set, and the system prompt.
type RequestArgs struct {
	Messages     []models.ConversationMessage
	ToolSpecs    []ToolSpec
	SystemPrompt string
}

// FormatRequest builds the outgoing RequestArgs from a conversation state,
// the runtime's registered tools, the system prompt, cached AgentSpawn hook
// outputs, and the agent's declared resource references (spec §4.6.5).
func FormatRequest(state *models.ConversationState, tools []Tool, systemPrompt string, agentSpawnOutputs []string, resources []models.ResourceRef) (*RequestArgs, error) {
	specs := ToolSpecsFromTools(tools)
	names := toolNameSet(specs)

	maxHistory := state.MaxHistory
	if maxHistory <= 0 {
		maxHistory = models.DefaultMaxHistory
	}

	history := EnforceConversationInvariants(state.Messages, names, maxHistory)

	needsDummy := false
	for _, m := range history {
		for _, tu := range m.ToolUses() {
			if tu.Name == DummyToolName {
				needsDummy = true
			}
		}
	}
	if needsDummy {
		specs = append(specs, DummyToolSpec())
	}

	resolved, err := ResolveResources(resources)
	if err != nil {
		return nil, err
	}
	ctxUser, ctxAssistant := BuildContextMessages(systemPrompt, agentSpawnOutputs, resolved)

	messages := make([]models.ConversationMessage, 0, len(history)+2)
	messages = append(messages, ctxUser, ctxAssistant)
	messages = append(messages, history...)

	return &RequestArgs{Messages: messages, ToolSpecs: specs, SystemPrompt: systemPrompt}, nil
}
