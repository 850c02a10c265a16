package pipeline

// Stage is how far a query (or the pipeline as a whole) has progressed.
// Stages only move forward, except that a rebuilt index resets every query.
type Stage int

const (
	StageUnindexed Stage = iota
	StageIndexed
	StageRetrieved
	StageFeaturized
	StageTrained
	StageScored
	StageRanked
	StageEmitted
)

func (s Stage) String() string {
	switch s {
	case StageUnindexed:
		return "unindexed"
	case StageIndexed:
		return "indexed"
	case StageRetrieved:
		return "retrieved"
	case StageFeaturized:
		return "featurized"
	case StageTrained:
		return "trained"
	case StageScored:
		return "scored"
	case StageRanked:
		return "ranked"
	case StageEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}
