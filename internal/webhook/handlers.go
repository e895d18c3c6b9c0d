package webhook

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
	"github.com/simplesurance/mergebot/internal/policy"
)

// handleInvalidate removes the cached policies of a repository, the next
// event of the repository rebuilds them.
func (s *Service) handleInvalidate(w http.ResponseWriter, req *http.Request) {
	resp := newHTTPRespWriter(s.logger, w)

	key := policy.CacheKey{
		Organization: req.URL.Query().Get("organization"),
		RepositoryID: req.URL.Query().Get("repositoryId"),
	}

	if key.Organization == "" || key.RepositoryID == "" {
		resp.Error(http.StatusBadRequest, "query parameters organization and repositoryId are required")
		return
	}

	s.factory.Invalidate(key)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleMonitorList(w http.ResponseWriter, _ *http.Request) {
	resp := newHTTPRespWriter(s.logger, w)
	resp.Header().Set("Content-Type", "text/plain")

	items := s.monitor.Items()
	if len(items) == 0 {
		resp.WriteStr("no pull requests are monitored\n")
		return
	}

	for i, item := range items {
		pr := item.PullRequest

		success := resp.WriteStr(fmt.Sprintf(
			"#%-4d PR: %-6d %s -> %s\tmerge status: %s\t%s\n",
			i, pr.ID, pr.SourceRefName, pr.TargetRefName, pr.MergeStatus, pr.Repository.URL,
		))
		if !success {
			s.logger.Debug(
				"aborting monitor list response",
				logfields.Event("monitor_list_aborted"),
				zap.Int("written_items", i),
			)
			return
		}
	}
}
