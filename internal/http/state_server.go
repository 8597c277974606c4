package http

import (
	"autofeedr/internal/model"
	herrors "autofeedr/internal/http/errors"
	"encoding/json"
	"fmt"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"net/http"
	"strings"
	"time"
)

const readHeaderTimeout = 5 * time.Second

// NextJobReader resolves the next scheduled job, as the scheduler does.
type NextJobReader interface {
	Next() (model.Job, time.Time, error)
}

type stateServer struct {
	store    model.StateStore
	schedule NextJobReader
}

type responseProblem struct {
	ProblemID string `json:"problemId"`
	Completed bool   `json:"completed"`
}

type responseNext struct {
	Job model.Job `json:"job"`
	At  time.Time `json:"at"`
}

var (
	getProblemErrorHandler = herrors.NewErrorHandler("GetProblem")
	nextJobErrorHandler    = herrors.NewErrorHandler("NextJob")
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "error forming response data", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(js)
}

func (ss *stateServer) completedHandler(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, ss.store.State().Completed)
}

func (ss *stateServer) failedHandler(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, ss.store.State().Failed)
}

func (ss *stateServer) problemHandler(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if parts := strings.Split(id, ":"); len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		getProblemErrorHandler.WriteAndLogErrorMsg(
			w,
			fmt.Sprintf("problem id %q must look like <source>:<contest>:<index>", id),
			http.StatusBadRequest,
			log.Fields{"id": id},
		)
		return
	}
	writeJSON(w, responseProblem{ProblemID: id, Completed: ss.store.IsCompleted(id)})
}

func (ss *stateServer) nextJobHandler(w http.ResponseWriter, req *http.Request) {
	job, at, err := ss.schedule.Next()
	if err != nil {
		nextJobErrorHandler.WriteAndLogError(
			w,
			"failed to resolve next job",
			err,
			http.StatusInternalServerError,
			log.Fields{},
		)
		return
	}
	writeJSON(w, responseNext{Job: job, At: at})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Infof("%s %s", r.Method, r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

// NewRouter serves the read-only view of the run history and the schedule.
func NewRouter(store model.StateStore, schedule NextJobReader) http.Handler {
	server := stateServer{store, schedule}
	router := mux.NewRouter()
	router.StrictSlash(true)
	router.HandleFunc("/api/v1/state/completed/", server.completedHandler).Methods("GET")
	router.HandleFunc("/api/v1/state/failed/", server.failedHandler).Methods("GET")
	router.HandleFunc("/api/v1/problem/{id}/", server.problemHandler).Methods("GET")
	router.HandleFunc("/api/v1/schedule/next/", server.nextJobHandler).Methods("GET")
	router.Use(loggingMiddleware)
	return router
}

func NewStateServer(store model.StateStore, schedule NextJobReader, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(store, schedule),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
