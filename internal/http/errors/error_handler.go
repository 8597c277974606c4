package errors

import (
	"encoding/json"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"net/http"
)

// ErrorHandler writes the JSON error body of one status API endpoint.
type ErrorHandler struct {
	endpoint string
}

type jsonError struct {
	ErrorMsg string     `json:"error"`
	Endpoint string     `json:"endpoint"`
	Request  log.Fields `json:"request,omitempty"`
}

func NewErrorHandler(endpoint string) *ErrorHandler {
	return &ErrorHandler{endpoint}
}

// WriteAndLogError hides the cause from clients on server errors and logs it.
func (eh *ErrorHandler) WriteAndLogError(
	w http.ResponseWriter,
	msg string,
	err error,
	statusCode int,
	request log.Fields,
) {
	logErr := errors.Wrap(err, msg)
	if statusCode >= http.StatusInternalServerError {
		eh.respond(w, msg, logErr.Error(), statusCode, request)
		return
	}
	eh.respond(w, logErr.Error(), logErr.Error(), statusCode, request)
}

// WriteAndLogErrorMsg reports a rejected request. request names the path
// variables or query values that were rejected; they are echoed back to the
// client on 4xx responses only.
func (eh *ErrorHandler) WriteAndLogErrorMsg(
	w http.ResponseWriter,
	msg string,
	statusCode int,
	request log.Fields,
) {
	eh.respond(w, msg, msg, statusCode, request)
}

func (eh *ErrorHandler) respond(w http.ResponseWriter, clientMsg, logMsg string, statusCode int, request log.Fields) {
	entry := log.WithFields(request).WithFields(log.Fields{"endpoint": eh.endpoint, "status": statusCode})
	body := jsonError{ErrorMsg: clientMsg, Endpoint: eh.endpoint}
	if statusCode >= http.StatusInternalServerError {
		entry.Error(logMsg)
	} else {
		entry.Debug(logMsg)
		if len(request) > 0 {
			body.Request = request
		}
	}

	resp, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(resp)
}
