package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/protocol"
	"github.com/careerflow/interview/internal/providers/llm"
	"github.com/careerflow/interview/internal/utils"
)

// Message is one turn of interview dialogue held in agent memory.
type Message struct {
	Role    string `json:"role"` // user|assistant
	Content string `json:"content"`
}

// Interview is the per-connection agent state. It is owned by a single
// handler goroutine and not safe for concurrent use.
type Interview struct {
	LLM  llm.Provider
	Log  *logrus.Logger
	Kind string // protocol.KindTechnical | protocol.KindBehavioral
	Ctx  models.InterviewContext

	stage     string
	turn      int
	stageTurn int
	ending    bool
	messages  []Message
}

func NewInterview(provider llm.Provider, log *logrus.Logger, kind string, ictx models.InterviewContext) *Interview {
	if log == nil {
		log = logrus.New()
	}
	return &Interview{
		LLM:   provider,
		Log:   log,
		Kind:  kind,
		Ctx:   ictx,
		stage: protocol.StageIntro,
	}
}

func (iv *Interview) Stage() string       { return iv.stage }
func (iv *Interview) Turn() int           { return iv.turn }
func (iv *Interview) Ending() bool        { return iv.ending }
func (iv *Interview) Messages() []Message { return iv.messages }

// Next runs one interviewer turn: record the candidate's answer (empty for
// the opening turn), apply stage transitions, and generate the next
// question. An empty reply with ending=true means the interview is over
// and evaluation should run.
func (iv *Interview) Next(ctx context.Context, userText string) (reply string, err error) {
	const op = "Interview.Next"

	if iv.ending {
		return "", nil
	}
	if userText != "" {
		iv.messages = append(iv.messages, Message{Role: "user", Content: userText})
	}

	// conclusion ends right after the candidate's answer
	if iv.stage == protocol.StageConclusion && iv.stageTurn >= 1 && userText != "" {
		iv.markEnded()
		return "", nil
	}

	if next, moved := advance(iv.stage, iv.stageTurn); moved {
		iv.Log.WithFields(logrus.Fields{"from": iv.stage, "to": next, "turn": iv.turn}).Info("stage transition")
		if protocol.TerminalStage(next) {
			iv.markEnded()
			return "", nil
		}
		iv.stage = next
		iv.stageTurn = 0
	}

	if iv.turn >= MaxTurns {
		iv.markEnded()
		return "", nil
	}

	prompt := iv.stagePrompt()
	out, err := iv.LLM.Complete(ctx, iv.promptWithHistory(prompt, 4))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "question generation failed", err)
	}

	out = CleanSpoken(out)
	iv.messages = append(iv.messages, Message{Role: "assistant", Content: out})
	iv.turn++
	iv.stageTurn++
	return out, nil
}

func (iv *Interview) markEnded() {
	iv.stage = protocol.StageEnd
	iv.ending = true
}

// stagePrompt builds the per-stage instruction, keyed off the interview
// context the way a human interviewer would read a gap analysis.
func (iv *Interview) stagePrompt() string {
	job := iv.Ctx.Job
	user := iv.Ctx.User
	gaps := iv.Ctx.Gaps

	persona := "You are interviewing for " + orDefault(job.Title, "this role") +
		". Keep responses SHORT (1-2 sentences). Ask ONE clear question. " +
		"Do not include labels like 'Interviewer:' in your response."
	if iv.Kind == protocol.KindBehavioral {
		persona += " Focus on behavioral and situational questions."
	}

	switch iv.stage {
	case protocol.StageIntro:
		return persona + " Welcome the candidate and ask for a quick self-introduction."
	case protocol.StageResume:
		topic := "their experience"
		if len(user.Skills) > 0 {
			n := len(user.Skills)
			if n > 2 {
				n = 2
			}
			topic = strings.Join(user.Skills[:n], ", ")
		}
		return persona + " Ask about " + topic + " or a key project."
	case protocol.StageGapChallenge:
		skill := "problem-solving"
		if len(gaps.MissingSkills) > 0 {
			skill = gaps.MissingSkills[0]
		}
		return persona + " Ask about their experience or approach to " + skill + "."
	case protocol.StageConclusion:
		return persona + " Max 15 words. Say: 'Thanks for your time today. We'll review and be in touch soon. Goodbye!'"
	}
	return persona
}

// promptWithHistory folds the last n dialogue turns into the prompt so the
// model sees recent conversation without the full transcript.
func (iv *Interview) promptWithHistory(prompt string, n int) string {
	msgs := iv.messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String()
}

// CleanSpoken strips markdown emphasis and interviewer labels so TTS does
// not read formatting aloud.
func CleanSpoken(text string) string {
	r := strings.NewReplacer("**", "", "*", "", "__", "", "_", "", "~~", "",
		"Interviewer:", "", "Interviewer :", "")
	return strings.TrimSpace(r.Replace(text))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
