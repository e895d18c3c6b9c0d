package policy

// BuildState describes if the automation of a repository is enabled.
type BuildState int

const (
	// BuildStateActive means the configured policies are executed.
	BuildStateActive BuildState = iota
	// BuildStateDisabled means no policy is executed for the repository,
	// either none is configured or the configuration is invalid.
	BuildStateDisabled
)

func (s BuildState) String() string {
	switch s {
	case BuildStateActive:
		return "active"
	case BuildStateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// BuildResult is the outcome of building a Runner from stored policy
// configurations.
type BuildResult struct {
	State BuildState
	// Reason describes why the automation is disabled.
	Reason string

	runner Runner
}

func disabledResult(reason string) *BuildResult {
	return &BuildResult{State: BuildStateDisabled, Reason: reason}
}

// Runner returns the built runner.
// If the state is BuildStateDisabled, the Noop runner is returned.
func (r *BuildResult) Runner() Runner {
	if r.State != BuildStateActive || r.runner == nil {
		return Noop
	}

	return r.runner
}
