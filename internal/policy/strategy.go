package policy

// Strategy identifies a policy variant.
type Strategy string

const (
	// StrategyCascadingRelease merges a release branch into the next
	// higher release branch, the highest release branch is merged into the
	// default branch.
	StrategyCascadingRelease Strategy = "ReleaseBranchCascadingPolicy"
	// StrategySourceToTarget merges a configured source branch into a
	// configured target branch.
	StrategySourceToTarget Strategy = "SpecificSourceAndTargetPolicy"
)

var strategyAliases = map[string]Strategy{
	string(StrategyCascadingRelease): StrategyCascadingRelease,
	"cascading-release":              StrategyCascadingRelease,
	string(StrategySourceToTarget):   StrategySourceToTarget,
	"source-to-target":               StrategySourceToTarget,
}

// ParseStrategy returns the Strategy with the given name or alias.
// If the name is unknown, false is returned.
func ParseStrategy(name string) (Strategy, bool) {
	s, exist := strategyAliases[name]
	return s, exist
}

func (s Strategy) String() string {
	return string(s)
}
