package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
)

// GeminiModel implements Model using Google's Gemini API with function
// calling.
type GeminiModel struct {
	client *genai.Client
	cfg    ModelConfig
}

func NewGeminiModel(ctx context.Context, apiKey string, cfg ModelConfig) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}
	return &GeminiModel{client: client, cfg: cfg}, nil
}

func (m *GeminiModel) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	model := m.client.GenerativeModel(m.cfg.ModelID)
	if m.cfg.Temperature >= 0 {
		model.SetTemperature(m.cfg.Temperature)
	}
	if m.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(m.cfg.MaxTokens)
	}
	if system := strings.TrimSpace(req.System); system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	history := req.Messages
	if req.ToolsEnabled && len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	} else {
		history = flattenForSynthesis(history)
	}

	contents := geminiContents(history)
	if len(contents) == 0 {
		return ModelReply{}, errors.New("conversation: gemini requires at least one message")
	}
	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	resp, err := cs.SendMessage(ctx, contents[len(contents)-1].Parts...)
	if err != nil {
		return ModelReply{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	return geminiReply(resp)
}

// Close releases resources held by the Gemini client.
func (m *GeminiModel) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func geminiDeclarations(defs []tools.Definition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}
		if len(def.Params) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(def.Params)),
			}
			for _, p := range def.Params {
				schema.Properties[p.Name] = &genai.Schema{
					Type:        geminiType(p.Type),
					Description: p.Description,
					Enum:        p.Enum,
				}
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			decl.Parameters = schema
		}
		out = append(out, decl)
	}
	return out
}

func geminiType(t tools.ParamType) genai.Type {
	switch t {
	case tools.TypeInteger:
		return genai.TypeInteger
	case tools.TypeNumber:
		return genai.TypeNumber
	case tools.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// geminiContents converts history, merging consecutive entries of the same
// role. Tool results travel as function responses in user content.
func geminiContents(history []Message) []*genai.Content {
	var out []*genai.Content
	push := func(role string, parts []genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range history {
		switch msg.Role {
		case RoleAssistant:
			var parts []genai.Part
			if text := strings.TrimSpace(msg.Text); text != "" {
				parts = append(parts, genai.Text(text))
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Arguments})
			}
			push("model", parts)
		case RoleTool:
			parts := make([]genai.Part, 0, len(msg.ToolResults))
			for _, res := range msg.ToolResults {
				parts = append(parts, genai.FunctionResponse{Name: res.Name, Response: resultValue(res)})
			}
			push("user", parts)
		default:
			if text := strings.TrimSpace(msg.Text); text != "" {
				push("user", []genai.Part{genai.Text(text)})
			}
		}
	}
	return out
}

func geminiReply(resp *genai.GenerateContentResponse) (ModelReply, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return ModelReply{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	var reply ModelReply
	if candidate.Content == nil {
		return reply, nil
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			reply.ToolCalls = append(reply.ToolCalls, geminiCall(p))
		case *genai.FunctionCall:
			reply.ToolCalls = append(reply.ToolCalls, geminiCall(*p))
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

// Gemini does not assign call ids, so each call gets a fresh one.
func geminiCall(fc genai.FunctionCall) tools.Request {
	return tools.Request{
		ID:        "call_" + uuid.NewString(),
		Name:      fc.Name,
		Arguments: fc.Args,
	}
}
