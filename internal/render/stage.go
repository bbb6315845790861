package render

// Stage is the furthest point a session's pipeline has reached. Stages are
// ordered by acquisition, so teardown releases everything associated with
// stages at or below the one reached, highest first.
type Stage int

const (
	StageNone Stage = iota
	StageDisplayOpened
	StageContextCreated
	StageSurfaceCreated
	StageCurrent
	StageProgramCreated
	StageRendered
)

var stageNames = [...]string{
	StageNone:           "none",
	StageDisplayOpened:  "display-opened",
	StageContextCreated: "context-created",
	StageSurfaceCreated: "surface-created",
	StageCurrent:        "current",
	StageProgramCreated: "program-created",
	StageRendered:       "rendered",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "invalid"
	}
	return stageNames[s]
}
