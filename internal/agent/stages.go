// Package agent drives the server side of an interview session: a
// forward-only stage machine, LLM-backed question generation, and terminal
// evaluation producing the feedback report.
package agent

import "github.com/careerflow/interview/internal/protocol"

// stageConfig bounds how many turns a stage runs before advancing.
type stageConfig struct {
	Turns int
	Next  string
}

// Four-stage flow: intro -> resume -> gap_challenge -> conclusion -> end.
var stages = map[string]stageConfig{
	protocol.StageIntro:        {Turns: 2, Next: protocol.StageResume},
	protocol.StageResume:       {Turns: 3, Next: protocol.StageGapChallenge},
	protocol.StageGapChallenge: {Turns: 4, Next: protocol.StageConclusion},
	protocol.StageConclusion:   {Turns: 2, Next: protocol.StageEnd},
}

// MaxTurns hard-caps an interview regardless of stage bookkeeping.
const MaxTurns = 15

// advance applies the transition rules: move to the next stage once the
// current one has used its turns, and only ever forward.
func advance(stage string, stageTurn int) (string, bool) {
	cfg, ok := stages[stage]
	if !ok {
		return protocol.StageEnd, true
	}
	if stageTurn < cfg.Turns {
		return stage, false
	}
	if protocol.StageIndex(cfg.Next) <= protocol.StageIndex(stage) {
		return stage, false
	}
	return cfg.Next, true
}
