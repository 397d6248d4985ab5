package conversation

import (
	"fmt"
	"strings"
	"time"
)

// PromptConfig describes the hospital for the system prompt.
type PromptConfig struct {
	HospitalName string
	Location     *time.Location
	Services     []string
	OpenTime     string
	CloseTime    string
}

const promptTemplate = `You are the appointment assistant for %s. You help patients book, reschedule and cancel hospital appointments and you advise them on waiting times.

Current date and time: %s (%s).
Appointment types: %s.
Working hours: %s to %s every day.

Rules:
- Use the tools for every availability, wait-time or booking question. Never invent slots, waits or appointment ids.
- Dates passed to tools use YYYY-MM-DD and times use 24 hour HH:MM. Resolve words like "tomorrow" or "next Monday" against the current date above.
- Before booking, confirm the patient's name, the appointment type, the date and the time.
- Predicted waits are estimates. Mention the congestion level (low, moderate or high) and offer quieter alternatives when the wait is high.
- If a tool reports an error, explain it briefly and suggest what the patient can do next.
- You are not a clinician. For urgent symptoms tell the patient to go to the emergency department or call emergency services.
- Keep answers short and friendly.`

// SystemPrompt returns a PromptFunc rendering cfg at the given time.
func SystemPrompt(cfg PromptConfig) PromptFunc {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	name := strings.TrimSpace(cfg.HospitalName)
	if name == "" {
		name = "the hospital"
	}
	open, closing := cfg.OpenTime, cfg.CloseTime
	if open == "" {
		open = "09:00"
	}
	if closing == "" {
		closing = "17:00"
	}
	services := strings.Join(cfg.Services, ", ")
	return func(now time.Time) string {
		local := now.In(loc)
		return fmt.Sprintf(promptTemplate,
			name,
			local.Format("Monday, 2006-01-02 15:04"),
			loc.String(),
			services,
			open,
			closing,
		)
	}
}
