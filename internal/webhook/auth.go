package webhook

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/authtoken"
	"github.com/simplesurance/mergebot/internal/logfields"
)

// handleIssueToken responds with a signed token whose subject is the
// personal access token sent in the request body.
func (s *Service) handleIssueToken(w http.ResponseWriter, req *http.Request) {
	resp := newHTTPRespWriter(s.logger, w)

	body, err := io.ReadAll(io.LimitReader(req.Body, maxPayloadSize))
	if err != nil {
		s.logger.Info(
			"reading http request body failed",
			logfields.Event("reading_http_body_failed"),
			zap.Error(err),
		)
		resp.Error(http.StatusBadRequest, "reading body failed")
		return
	}

	pat := strings.TrimSpace(string(body))
	if pat == "" {
		resp.Error(http.StatusBadRequest, "body did not contain a personal access token")
		return
	}

	token, err := s.auth.Issue(pat)
	if err != nil {
		s.logger.Error(
			"issuing token failed",
			logfields.Event("issuing_token_failed"),
			zap.Error(err),
		)
		resp.Error(http.StatusInternalServerError, "issuing token failed")
		return
	}

	s.logger.Info("token issued", logfields.Event("token_issued"))

	resp.Header().Set("Content-Type", "text/plain")
	resp.WriteStr(token)
}

// requireToken rejects requests without a valid bearer token.
// The subject of the token is stored in the request context.
func (s *Service) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp := newHTTPRespWriter(s.logger, w)

		token, err := authtoken.BearerToken(req)
		if err != nil {
			resp.Error(http.StatusUnauthorized, err.Error())
			return
		}

		subject, err := s.auth.Verify(token)
		if err != nil {
			s.logger.Info(
				"rejecting request, token is invalid",
				logfields.Event("authentication_failed"),
				zap.String("http.path", req.URL.Path),
				zap.Error(err),
			)
			resp.Error(http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, req.WithContext(authtoken.ContextWithSubject(req.Context(), subject)))
	})
}
