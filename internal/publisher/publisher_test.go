package publisher

import (
	"context"
	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var commitTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func initRepo(t *testing.T) (string, *git.Repository) {
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	return dir, repo
}

func initBare(t *testing.T) (string, *git.Repository) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, true)
	require.NoError(t, err)
	return dir, repo
}

func writeFile(t *testing.T, root, name, content string) {
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newPublisher(repoPath, remote string) *GitPublisher {
	publisher := NewGitPublisher(Config{RepoPath: repoPath, Remote: remote, Branch: "main"})
	publisher.now = func() time.Time { return commitTime }
	return publisher
}

func headCommit(t *testing.T, repo *git.Repository) plumbing.Hash {
	head, err := repo.Head()
	require.NoError(t, err)
	return head.Hash()
}

func TestPublishWithoutRemoteCommitsLocally(t *testing.T) {
	dir, repo := initRepo(t)
	writeFile(t, dir, "challenges/2026-03/codeforces_4_A_watermelon/README.md", "# Watermelon\n")
	writeFile(t, dir, "INDEX.md", "# Challenges\n")

	require.NoError(t, newPublisher(dir, "").Publish(context.Background(), "chore(cf): add watermelon"))

	commit, err := repo.CommitObject(headCommit(t, repo))
	require.NoError(t, err)
	assert.Equal(t, "chore(cf): add watermelon", commit.Message)
	assert.Equal(t, DefaultAuthorName, commit.Author.Name)
	assert.Equal(t, DefaultAuthorEmail, commit.Author.Email)
	assert.True(t, commitTime.Equal(commit.Author.When))

	_, err = commit.File("challenges/2026-03/codeforces_4_A_watermelon/README.md")
	assert.NoError(t, err)
	_, err = commit.File("INDEX.md")
	assert.NoError(t, err)

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	status, err := worktree.Status()
	require.NoError(t, err)
	assert.True(t, status.IsClean())
}

func TestPublishPushesToNamedRemote(t *testing.T) {
	dir, repo := initRepo(t)
	bareDir, bare := initBare(t)
	_, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{bareDir}})
	require.NoError(t, err)
	writeFile(t, dir, "INDEX.md", "# Challenges\n")

	require.NoError(t, newPublisher(dir, "origin").Publish(context.Background(), "first"))

	pushed, err := bare.Reference(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	assert.Equal(t, headCommit(t, repo), pushed.Hash())
}

func TestPublishPushesToURL(t *testing.T) {
	dir, repo := initRepo(t)
	bareDir, bare := initBare(t)
	publisher := newPublisher(dir, bareDir)

	writeFile(t, dir, "a.txt", "a")
	require.NoError(t, publisher.Publish(context.Background(), "first"))
	writeFile(t, dir, "b.txt", "b")
	require.NoError(t, publisher.Publish(context.Background(), "second"))

	pushed, err := bare.Reference(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	assert.Equal(t, headCommit(t, repo), pushed.Hash())

	remotes, err := repo.Remotes()
	require.NoError(t, err)
	assert.Empty(t, remotes)

	assert.NoError(t, publisher.push(context.Background(), repo), "already up to date is not a failure")
}

func TestPublishNothingToCommit(t *testing.T) {
	dir, _ := initRepo(t)
	publisher := newPublisher(dir, "")
	writeFile(t, dir, "a.txt", "a")
	require.NoError(t, publisher.Publish(context.Background(), "first"))

	err := publisher.Publish(context.Background(), "empty")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorPublish))
}

func TestPublishPushFailure(t *testing.T) {
	dir, _ := initRepo(t)
	writeFile(t, dir, "a.txt", "a")

	err := newPublisher(dir, filepath.Join(t.TempDir(), "missing.git")).Publish(context.Background(), "first")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrorPublish))
}

func TestPublishNotARepository(t *testing.T) {
	err := newPublisher(t.TempDir(), "").Publish(context.Background(), "first")
	assert.True(t, errors.Is(err, ErrorPublish))
}

func TestNewGitPublisherAuth(t *testing.T) {
	assert.Nil(t, NewGitPublisher(Config{}).auth)

	publisher := NewGitPublisher(Config{Token: "secret"})
	require.NotNil(t, publisher.auth)
	assert.Equal(t, "http-basic-auth", publisher.auth.Name())
	assert.Equal(t, DefaultBranch, publisher.branch)
}
