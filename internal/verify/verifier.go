// Package verify runs the configured test command against a freshly written challenge.
package verify

import (
	"context"
	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	log "github.com/sirupsen/logrus"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultCommand   = "pytest {dir}"
	dirPlaceholder   = "{dir}"
	maxReportedBytes = 4096
)

var ErrorVerification = errors.New("verification failed")

type CommandVerifier struct {
	args     []string
	repoPath string
	timeout  time.Duration
}

// NewCommandVerifier splits command with shell quoting rules. An empty
// command disables verification. A zero timeout leaves the run bounded only
// by the caller's context.
func NewCommandVerifier(command string, repoPath string, timeout time.Duration) (*CommandVerifier, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "failed parsing verify command %q", command)
	}
	return &CommandVerifier{args: args, repoPath: repoPath, timeout: timeout}, nil
}

// Verify runs the command from the repository root with {dir} replaced by dir.
func (v *CommandVerifier) Verify(ctx context.Context, dir string) error {
	if len(v.args) == 0 {
		log.WithField("dir", dir).Warn("No verify command configured, skipping verification")
		return nil
	}
	args := make([]string, len(v.args))
	for i, arg := range v.args {
		args[i] = strings.ReplaceAll(arg, dirPlaceholder, dir)
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	command := exec.CommandContext(ctx, args[0], args[1:]...)
	command.Dir = v.repoPath

	log.WithField("command", shellquote.Join(args...)).Info("Running verification")
	output, err := command.CombinedOutput()
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s: %s", args[0], tail(output)), ErrorVerification)
	}
	return nil
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > maxReportedBytes {
		text = "..." + text[len(text)-maxReportedBytes:]
	}
	return text
}
