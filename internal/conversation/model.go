package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
)

// ModelConfig holds provider-neutral generation settings.
type ModelConfig struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
}

// flattenForSynthesis rewrites tool traffic as plain text so providers can be
// called without any tool declarations.
func flattenForSynthesis(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			text := msg.Text
			if len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, call := range msg.ToolCalls {
					names = append(names, call.Name)
				}
				note := "Checking: " + strings.Join(names, ", ")
				if text == "" {
					text = note
				} else {
					text += "\n" + note
				}
			}
			if text != "" {
				out = append(out, Message{Role: RoleAssistant, Text: text, At: msg.At})
			}
		case RoleTool:
			out = append(out, Message{Role: RoleUser, Text: renderToolResults(msg.ToolResults), At: msg.At})
		default:
			out = append(out, Message{Role: msg.Role, Text: msg.Text, At: msg.At})
		}
	}
	return out
}

func renderToolResults(results []tools.Result) string {
	var b strings.Builder
	b.WriteString("Tool results (answer the patient using these; do not call tools):")
	for _, res := range results {
		data, err := json.Marshal(resultValue(res))
		if err != nil {
			data = []byte(fmt.Sprintf(`{"status":"error","error":{"code":"internal","message":%q}}`, err.Error()))
		}
		fmt.Fprintf(&b, "\n%s: %s", res.Name, data)
	}
	return b.String()
}

// resultValue renders a tool result as a JSON object built from plain maps
// and slices.
func resultValue(res tools.Result) map[string]any {
	out := map[string]any{"status": string(res.Status)}
	if res.Error != nil {
		out["error"] = map[string]any{"code": res.Error.Code, "message": res.Error.Message}
	}
	if res.Payload != nil {
		out["result"] = jsonValue(res.Payload)
	}
	return out
}

// jsonValue round-trips v through encoding/json so struct payloads keep their
// json tags when handed to SDK document encoders.
func jsonValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}
