package webhook

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

type httpRespWriter struct {
	http.ResponseWriter
	logger *zap.Logger
}

func newHTTPRespWriter(logger *zap.Logger, resp http.ResponseWriter) *httpRespWriter {
	return &httpRespWriter{
		ResponseWriter: resp,
		logger:         logger,
	}
}

// WriteStr writes a string to the http response writer.
// If an error happens, it is logged with info priority and false is returned.
func (rw *httpRespWriter) WriteStr(str string) (wasSuccessful bool) {
	_, err := rw.ResponseWriter.Write([]byte(str))
	if err != nil {
		rw.logger.Info(
			"sending http response failed",
			logfields.Event("sending_http_response_failed"),
			zap.Error(err),
		)
		return false
	}

	return true
}

// Error responds with the status code and msg as plain text body.
func (rw *httpRespWriter) Error(status int, msg string) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(status)
	rw.WriteStr(msg + "\n")
}
