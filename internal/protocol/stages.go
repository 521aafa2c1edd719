package protocol

import "errors"

// ErrMissingType marks a textual frame without a type discriminator.
var ErrMissingType = errors.New("frame missing type discriminator")

// Interview stages, in order. Transitions are server-driven; clients only
// observe them.
const (
	StageIntro        = "intro"
	StageResume       = "resume"
	StageGapChallenge = "gap_challenge"
	StageConclusion   = "conclusion"
	StageEnd          = "end"
)

var stageOrder = []string{StageIntro, StageResume, StageGapChallenge, StageConclusion, StageEnd}

// StageIndex returns the position of a stage in the interview flow, or -1
// for unknown stages.
func StageIndex(stage string) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// TerminalStage reports whether a stage value ends the interview.
func TerminalStage(stage string) bool {
	return stage == StageEnd
}
