package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/careerflow/interview/internal/protocol"
)

const evalPromptFmt = `Evaluate the interview below for the role "%s". Return ONLY JSON:
{
    "score": <0-100>,
    "verdict": "Hired" or "Not Hired",
    "summary": "<brief 2-line evaluation>",
    "strengths": ["s1", "s2"],
    "improvements": ["i1", "i2"],
    "roadmap_additions": ["optional learning topics"]
}`

// Evaluate scores the completed interview. It never returns an error to the
// session path: on any failure a placeholder report is produced so the
// client still reaches its feedback state.
func (iv *Interview) Evaluate(ctx context.Context) *protocol.Feedback {
	prompt := strings.Replace(evalPromptFmt, "%s", orDefault(iv.Ctx.Job.Title, "this position"), 1)

	out, err := iv.LLM.Complete(ctx, iv.promptWithHistory(prompt, 8))
	if err != nil {
		iv.Log.WithError(err).Error("evaluation failed")
		return fallbackFeedback("Unable to evaluate", "An error occurred during evaluation. Please try again.")
	}

	fb, perr := parseFeedback(out)
	if perr != nil {
		iv.Log.WithError(perr).Warn("evaluation returned unparseable feedback")
		return fallbackFeedback("Unable to evaluate", "The evaluation could not be read. Please try again.")
	}
	return fb
}

// parseFeedback tolerates code fences around the model's JSON.
func parseFeedback(raw string) (*protocol.Feedback, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var fb protocol.Feedback
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func fallbackFeedback(verdict, summary string) *protocol.Feedback {
	return &protocol.Feedback{Score: 0, Verdict: verdict, Summary: summary}
}
