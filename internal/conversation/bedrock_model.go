package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockModel implements Model with the Bedrock Converse API and native tool
// use. In synthesis mode no tool configuration is sent and earlier tool
// traffic is flattened to text.
type BedrockModel struct {
	api bedrockConverseAPI
	cfg ModelConfig
}

func NewBedrockModel(api bedrockConverseAPI, cfg ModelConfig) *BedrockModel {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockModel{api: api, cfg: cfg}
}

func (m *BedrockModel) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	if strings.TrimSpace(m.cfg.ModelID) == "" {
		return ModelReply{}, errors.New("conversation: bedrock model id is required")
	}

	history := req.Messages
	if !req.ToolsEnabled {
		history = flattenForSynthesis(history)
	}
	messages, err := bedrockMessages(history)
	if err != nil {
		return ModelReply{}, err
	}
	if len(messages) == 0 {
		return ModelReply{}, errors.New("conversation: bedrock requires at least one message")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(m.cfg.ModelID),
		Messages:        messages,
		InferenceConfig: m.inference(),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}
	if req.ToolsEnabled && len(req.Tools) > 0 {
		input.ToolConfig = bedrockToolConfig(req.Tools)
	}

	out, err := m.api.Converse(ctx, input)
	if err != nil {
		return ModelReply{}, fmt.Errorf("conversation: bedrock converse: %w", err)
	}
	return bedrockReply(out)
}

func (m *BedrockModel) inference() *brtypes.InferenceConfiguration {
	inference := &brtypes.InferenceConfiguration{}
	if m.cfg.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(m.cfg.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if m.cfg.Temperature >= 0 {
		inference.Temperature = aws.Float32(m.cfg.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		return nil
	}
	return inference
}

func bedrockToolConfig(defs []tools.Definition) *brtypes.ToolConfiguration {
	specs := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(def.Name),
				Description: aws.String(def.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(jsonValue(def.Schema())),
				},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

// bedrockMessages converts history to Converse messages, merging consecutive
// entries of the same role since Converse expects roles to alternate.
func bedrockMessages(history []Message) ([]brtypes.Message, error) {
	var out []brtypes.Message
	push := func(role brtypes.ConversationRole, blocks []brtypes.ContentBlock) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}

	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			if text := strings.TrimSpace(msg.Text); text != "" {
				push(brtypes.ConversationRoleUser, []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}})
			}
		case RoleAssistant:
			var blocks []brtypes.ContentBlock
			if text := strings.TrimSpace(msg.Text); text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: text})
			}
			for _, call := range msg.ToolCalls {
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(call.ID),
						Name:      aws.String(call.Name),
						Input:     document.NewLazyDocument(jsonValue(args)),
					},
				})
			}
			push(brtypes.ConversationRoleAssistant, blocks)
		case RoleTool:
			blocks := make([]brtypes.ContentBlock, 0, len(msg.ToolResults))
			for _, res := range msg.ToolResults {
				status := brtypes.ToolResultStatusSuccess
				if !res.OK() {
					status = brtypes.ToolResultStatusError
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(res.ID),
						Status:    status,
						Content: []brtypes.ToolResultContentBlock{
							&brtypes.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(resultValue(res))},
						},
					},
				})
			}
			push(brtypes.ConversationRoleUser, blocks)
		default:
			return nil, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}
	return out, nil
}

func bedrockReply(out *bedrockruntime.ConverseOutput) (ModelReply, error) {
	if out == nil {
		return ModelReply{}, errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ModelReply{}, errors.New("conversation: bedrock response did not include a message output")
	}

	var reply ModelReply
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			args, err := decodeToolInput(b.Value.Input)
			if err != nil {
				return ModelReply{}, err
			}
			reply.ToolCalls = append(reply.ToolCalls, tools.Request{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	// An empty reply is returned as is; the orchestrator decides what to do
	// with it.
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

// decodeToolInput goes through JSON so numbers arrive as float64, the same as
// every other provider.
func decodeToolInput(input document.Interface) (map[string]any, error) {
	if input == nil {
		return map[string]any{}, nil
	}
	raw, err := input.MarshalSmithyDocument()
	if err != nil {
		return nil, fmt.Errorf("conversation: decode tool input: %w", err)
	}
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("conversation: decode tool input: %w", err)
	}
	return args, nil
}
