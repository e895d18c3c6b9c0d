package logfields

import "go.uber.org/zap"

func PullRequest(val int) zap.Field {
	return zap.Int("git.pull_request", val)
}

func PullRequestStatus(val string) zap.Field {
	return zap.String("git.pull_request_status", val)
}

func MergeStatus(val string) zap.Field {
	return zap.String("git.merge_status", val)
}

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryID(val string) zap.Field {
	return zap.String("git.repository_id", val)
}

func RepositoryURL(val string) zap.Field {
	return zap.String("git.repository_url", val)
}

func Organization(val string) zap.Field {
	return zap.String("git.organization", val)
}

func Branch(val string) zap.Field {
	return zap.String("git.branch", val)
}

func SourceBranch(val string) zap.Field {
	return zap.String("git.source_branch", val)
}

func TargetBranch(val string) zap.Field {
	return zap.String("git.target_branch", val)
}

func Commit(val string) zap.Field {
	return zap.String("git.commit", val)
}
