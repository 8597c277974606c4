package main

import (
	"autofeedr/internal/config"
	"autofeedr/internal/executor"
	"autofeedr/internal/model"
	"autofeedr/internal/provider/codeforces"
	"autofeedr/internal/publisher"
	"autofeedr/internal/repowriter"
	"autofeedr/internal/scheduler"
	"autofeedr/internal/solver"
	"autofeedr/internal/verify"
	"context"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	gitTokenEnv    = "AUTOFEEDR_GIT_TOKEN"
	gitUsernameEnv = "AUTOFEEDR_GIT_USERNAME"
)

type app struct {
	settings  *config.Settings
	schedule  model.Schedule
	location  *time.Location
	store     model.StateStore
	scheduler *scheduler.Scheduler
}

// loadApp reads the settings and resolves the schedule. The state store and
// collaborators are only built by the commands that need them.
func loadApp(path string) (*app, error) {
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	location, err := settings.Location()
	if err != nil {
		return nil, err
	}
	schedule, err := settings.BuildSchedule()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"settings": path,
		"jobs":     schedule.JobCount(),
		"timezone": location.String(),
	}).Debug("Loaded settings")
	return &app{settings: settings, schedule: schedule, location: location}, nil
}

func (a *app) openStore(ctx context.Context) error {
	store, err := model.OpenStateStore(ctx, a.settings.StoreConfig())
	if err != nil {
		return errors.Wrap(err, "could not open state store")
	}
	if err = store.Load(ctx); err != nil {
		_ = store.Close()
		return errors.Wrap(err, "could not load state")
	}
	a.store = store
	return nil
}

// buildScheduler wires the full pipeline. openStore must have succeeded.
func (a *app) buildScheduler() error {
	verifier, err := verify.NewCommandVerifier(*a.settings.VerifyCommand, a.settings.RepoPath, a.settings.VerifyTimeout())
	if err != nil {
		return err
	}
	collaborators := executor.Collaborators{
		Provider:  codeforces.NewProvider(a.settings.ProviderConfig()),
		Solver:    solver.NewTemplateSolver(),
		Writer:    repowriter.NewRepoWriter(a.settings.RepoPath),
		Verifier:  verifier,
		Publisher: publisher.NewGitPublisher(a.settings.PublisherConfig(os.Getenv(gitTokenEnv), os.Getenv(gitUsernameEnv))),
	}
	jobExecutor := executor.New(a.store, collaborators, a.settings.RetryPolicy(), a.location)
	a.scheduler = scheduler.New(a.schedule, a.location, jobExecutor)
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		log.WithField("error", err).Warn("Failed closing state store")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			log.WithField("signal", sig.String()).Info("Shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
