package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	prompt := SystemPrompt(PromptConfig{
		HospitalName: "Mercy Hospital",
		Location:     nairobi,
		Services:     []string{"consultation", "checkup"},
		OpenTime:     "08:00",
		CloseTime:    "16:00",
	})(fixedNow)

	assert.Contains(t, prompt, "Mercy Hospital")
	assert.Contains(t, prompt, "Sunday, 2026-10-18 11:00 (EAT)")
	assert.Contains(t, prompt, "consultation, checkup")
	assert.Contains(t, prompt, "08:00 to 16:00")
}

func TestSystemPromptDefaults(t *testing.T) {
	prompt := SystemPrompt(PromptConfig{})(fixedNow)
	assert.Contains(t, prompt, "the hospital")
	assert.Contains(t, prompt, "09:00 to 17:00")
	assert.Contains(t, prompt, "(UTC)")
}
