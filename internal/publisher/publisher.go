// Package publisher commits generated challenges and pushes them with go-git.
package publisher

import (
	"context"
	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
	"time"
)

const (
	DefaultBranch      = "main"
	DefaultAuthorName  = "autofeedr"
	DefaultAuthorEmail = "autofeedr@localhost"
	DefaultTokenUser   = "autofeedr"
	anonymousRemote    = "autofeedr-push"
)

var ErrorPublish = errors.New("failed publishing changes")

type Config struct {
	RepoPath string
	// Remote is the name of a configured remote or a URL. Empty disables pushing.
	Remote      string
	Branch      string
	AuthorName  string
	AuthorEmail string
	// Token enables HTTP basic auth for the push.
	Token    string
	Username string
}

type GitPublisher struct {
	repoPath string
	remote   string
	branch   string
	author   object.Signature
	auth     transport.AuthMethod
	now      func() time.Time
}

func NewGitPublisher(cfg Config) *GitPublisher {
	publisher := &GitPublisher{
		repoPath: cfg.RepoPath,
		remote:   cfg.Remote,
		branch:   valueOr(cfg.Branch, DefaultBranch),
		author: object.Signature{
			Name:  valueOr(cfg.AuthorName, DefaultAuthorName),
			Email: valueOr(cfg.AuthorEmail, DefaultAuthorEmail),
		},
		now: time.Now,
	}
	if cfg.Token != "" {
		publisher.auth = &http.BasicAuth{Username: valueOr(cfg.Username, DefaultTokenUser), Password: cfg.Token}
	}
	return publisher
}

// Publish stages every change in the worktree, commits it with message and
// pushes the branch. Without a remote the commit stays local.
func (p *GitPublisher) Publish(ctx context.Context, message string) error {
	repo, err := git.PlainOpen(p.repoPath)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed opening repository %s", p.repoPath), ErrorPublish)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed opening worktree"), ErrorPublish)
	}
	if err = worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return errors.Mark(errors.Wrap(err, "failed staging changes"), ErrorPublish)
	}

	author := p.author
	author.When = p.now()
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed committing changes"), ErrorPublish)
	}
	log.WithFields(log.Fields{
		"commit":  hash.String(),
		"message": message,
	}).Info("Committed changes")

	return p.push(ctx, repo)
}

func (p *GitPublisher) push(ctx context.Context, repo *git.Repository) error {
	if p.remote == "" {
		log.Warn("No git remote configured, skipping push")
		return nil
	}
	refSpec := config.RefSpec("refs/heads/" + p.branch + ":refs/heads/" + p.branch)
	remote, err := p.resolveRemote(repo)
	if err != nil {
		return err
	}
	err = remote.PushContext(ctx, &git.PushOptions{
		RemoteName: remote.Config().Name,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       p.auth,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		log.WithField("branch", p.branch).Info("Remote already up to date")
		return nil
	}
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed pushing %s to %s", p.branch, p.remote), ErrorPublish)
	}
	log.WithFields(log.Fields{
		"remote": p.remote,
		"branch": p.branch,
	}).Info("Pushed changes")
	return nil
}

// resolveRemote prefers a configured remote of that name and otherwise treats
// the value as a URL.
func (p *GitPublisher) resolveRemote(repo *git.Repository) (*git.Remote, error) {
	remote, err := repo.Remote(p.remote)
	if err == nil {
		return remote, nil
	}
	if !errors.Is(err, git.ErrRemoteNotFound) {
		return nil, errors.Mark(errors.Wrapf(err, "failed reading remote %s", p.remote), ErrorPublish)
	}
	remoteConfig := &config.RemoteConfig{Name: anonymousRemote, URLs: []string{p.remote}}
	if err = remoteConfig.Validate(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid remote %s", p.remote), ErrorPublish)
	}
	return git.NewRemote(repo.Storer, remoteConfig), nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
