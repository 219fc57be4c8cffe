package transcript

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/grovetools/lookout/pkg/models"
)

// maxTextPreview bounds the text carried on an event. Full message bodies
// stay in the transcript file; events only need enough for a description.
const maxTextPreview = 200

type rawLine struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	GitBranch string          `json:"gitBranch"`
	Message   json.RawMessage `json:"message"`
}

type rawMessage struct {
	Model   string             `json:"model"`
	Role    string             `json:"role"`
	Usage   *models.TokenUsage `json:"usage"`
	Content json.RawMessage    `json:"content"`
}

type rawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
	Content   json.RawMessage `json:"content"`
}

// ParseLine decodes one transcript line into zero or more events, in block
// order. Malformed lines and lines without a recognized type yield nil.
func ParseLine(line []byte) []Event {
	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil
	}
	if raw.Type != "user" && raw.Type != "assistant" {
		// Branch markers can ride on any line type.
		if raw.GitBranch != "" {
			return []Event{{Kind: EventMeta, Timestamp: parseTimestamp(raw.Timestamp), GitBranch: raw.GitBranch}}
		}
		return nil
	}

	ts := parseTimestamp(raw.Timestamp)

	var msg rawMessage
	if len(raw.Message) > 0 {
		if err := json.Unmarshal(raw.Message, &msg); err != nil {
			msg = rawMessage{}
		}
	}

	var events []Event

	// Usage, model and branch ride on the line as a meta event so the fold
	// sees them before the content blocks of the same line.
	if msg.Usage != nil || msg.Model != "" || raw.GitBranch != "" {
		events = append(events, Event{
			Kind:      EventMeta,
			Timestamp: ts,
			Usage:     msg.Usage,
			Model:     msg.Model,
			GitBranch: raw.GitBranch,
		})
	}

	blocks, plainText := decodeContent(msg.Content)
	if plainText != "" {
		kind := EventUserMessage
		if raw.Type == "assistant" {
			kind = EventAssistantMessage
		}
		events = append(events, Event{Kind: kind, Timestamp: ts, Text: truncate(plainText)})
		return events
	}

	soleResult := len(blocks) == 1 && blocks[0].Type == "tool_result"

	for _, block := range blocks {
		switch block.Type {
		case "text":
			kind := EventUserMessage
			if raw.Type == "assistant" {
				kind = EventAssistantMessage
			}
			events = append(events, Event{Kind: kind, Timestamp: ts, Text: truncate(block.Text)})

		case "thinking":
			events = append(events, Event{Kind: EventThinking, Timestamp: ts, Text: truncate(block.Thinking)})

		case "tool_use":
			events = append(events, Event{
				Kind:       EventToolUse,
				Timestamp:  ts,
				ToolName:   block.Name,
				ToolUseID:  block.ID,
				ToolInput:  block.Input,
				CodeChange: parseCodeChange(block.Name, block.Input),
			})

		case "tool_result":
			events = append(events, Event{
				Kind:           EventToolResult,
				Timestamp:      ts,
				ToolUseID:      block.ToolUseID,
				IsError:        block.IsError,
				SoleToolResult: soleResult,
			})
		}
	}

	return events
}

// decodeContent handles both content shapes: a plain string (old-style user
// lines) and an array of typed blocks.
func decodeContent(content json.RawMessage) ([]rawBlock, string) {
	if len(content) == 0 {
		return nil, ""
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return nil, text
	}

	var blocks []rawBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil, ""
	}
	return blocks, ""
}

// parseCodeChange captures the structured input of file-editing tools.
func parseCodeChange(toolName string, input json.RawMessage) *models.CodeChangeInput {
	if len(input) == 0 {
		return nil
	}

	switch toolName {
	case "Edit":
		var in struct {
			FilePath   string `json:"file_path"`
			OldString  string `json:"old_string"`
			NewString  string `json:"new_string"`
			ReplaceAll bool   `json:"replace_all"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil
		}
		return &models.CodeChangeInput{
			ToolName:   toolName,
			FilePath:   in.FilePath,
			OldString:  in.OldString,
			NewString:  in.NewString,
			ReplaceAll: in.ReplaceAll,
		}

	case "Write":
		var in struct {
			FilePath string `json:"file_path"`
			Content  string `json:"content"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil
		}
		return &models.CodeChangeInput{
			ToolName:  toolName,
			FilePath:  in.FilePath,
			NewString: in.Content,
		}

	case "MultiEdit":
		var in struct {
			FilePath string                 `json:"file_path"`
			Edits    []models.EditOperation `json:"edits"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil
		}
		return &models.CodeChangeInput{
			ToolName: toolName,
			FilePath: in.FilePath,
			Edits:    in.Edits,
		}
	}

	return nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncate(s string) string {
	if len(s) <= maxTextPreview {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multi-byte rune.
	n := maxTextPreview
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
