package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
	"github.com/kungukcm/Hospital-Booking-System/internal/conversation"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// BuildModel returns the configured language model, wrapped with the other
// provider as a fallback when both are configured. It returns a nil model when
// no provider is configured; the chat endpoints are then disabled.
func BuildModel(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (conversation.Model, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() error { return nil }
	modelCfg := conversation.ModelConfig{
		MaxTokens:   int32(cfg.LLMMaxTokens),
		Temperature: float32(cfg.LLMTemperature),
	}

	var bedrock, gemini conversation.Model
	closer := noop
	if strings.TrimSpace(cfg.BedrockModelID) != "" && awsCfg != nil {
		bedrockCfg := modelCfg
		bedrockCfg.ModelID = cfg.BedrockModelID
		bedrock = conversation.NewBedrockModel(bedrockruntime.NewFromConfig(*awsCfg), bedrockCfg)
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		geminiCfg := modelCfg
		geminiCfg.ModelID = cfg.GeminiModelID
		client, err := conversation.NewGeminiModel(ctx, cfg.GeminiAPIKey, geminiCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		gemini = client
		closer = client.Close
	}

	switch cfg.LLMProvider {
	case "gemini":
		if gemini == nil {
			return nil, nil, fmt.Errorf("bootstrap: LLM_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		logger.Info("using gemini model", "model", cfg.GeminiModelID, "fallback", bedrock != nil)
		return conversation.NewFallbackModel(gemini, bedrock, logger), closer, nil
	case "bedrock", "":
		if bedrock == nil {
			if gemini != nil {
				logger.Warn("bedrock not configured; using gemini")
				return gemini, closer, nil
			}
			logger.Warn("no language model configured; chat endpoints disabled")
			return nil, noop, nil
		}
		logger.Info("using bedrock model", "model", cfg.BedrockModelID, "fallback", gemini != nil)
		return conversation.NewFallbackModel(bedrock, gemini, logger), closer, nil
	default:
		_ = closer()
		return nil, nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
