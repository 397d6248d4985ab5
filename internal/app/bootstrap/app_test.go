package bootstrap

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
	"github.com/kungukcm/Hospital-Booking-System/internal/conversation"
	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

func testConfig(t *testing.T) *appconfig.Config {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SCHEDULING_TABLES_PATH", "")
	t.Setenv("LEARNED_ESTIMATOR_PATH", "")
	return appconfig.Load()
}

var fixedNow = time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, Deps{}, logging.Discard())
	assert.Error(t, err)
}

func TestBuildWithoutModelDisablesChat(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg, Deps{
		Registerer: prometheus.NewRegistry(),
		Clock:      func() time.Time { return fixedNow },
	}, logging.Discard())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Conversation)
	assert.IsType(t, &appointments.MemoryStore{}, app.Store)
	assert.ElementsMatch(t, tools.HospitalToolNames, app.Executor.Registry().Names())
}

func TestBuildWiresConversation(t *testing.T) {
	cfg := testConfig(t)
	model := conversation.ModelFunc(func(context.Context, conversation.ModelRequest) (conversation.ModelReply, error) {
		return conversation.ModelReply{Text: "Hello from the hospital."}, nil
	})
	app, err := Build(context.Background(), cfg, Deps{
		Registerer: prometheus.NewRegistry(),
		Clock:      func() time.Time { return fixedNow },
		Model:      model,
	}, logging.Discard())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Conversation)
	reply, err := app.Conversation.Respond(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from the hospital.", reply.Message)
}

func TestBuildRejectsBadWorkingHours(t *testing.T) {
	cfg := testConfig(t)
	cfg.WorkingHoursStart = "18:00"
	_, err := Build(context.Background(), cfg, Deps{Registerer: prometheus.NewRegistry()}, logging.Discard())
	assert.Error(t, err)
}

func TestBuildModelProviders(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	model, closer, err := BuildModel(ctx, cfg, nil, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, model)
	assert.NoError(t, closer())

	cfg.LLMProvider = "gemini"
	_, _, err = BuildModel(ctx, cfg, nil, logging.Discard())
	assert.Error(t, err)

	cfg.LLMProvider = "openai"
	_, _, err = BuildModel(ctx, cfg, nil, logging.Discard())
	assert.Error(t, err)
}

func TestBuildTurnLock(t *testing.T) {
	cfg := testConfig(t)
	assert.IsType(t, &conversation.MemoryTurnLock{}, BuildTurnLock(nil, cfg))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.IsType(t, &conversation.RedisTurnLock{}, BuildTurnLock(client, cfg))
}
