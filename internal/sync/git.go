package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const gitCommitMessage = "sync: update trackd export"

// GitDestination keeps the export as one file in an existing local clone.
// Each write fast-forwards the branch, commits the file if its content
// changed, and pushes to origin.
type GitDestination struct {
	repo   string
	file   string // relative to repo
	branch string
	author string // "Name <email>"; empty uses the clone's identity
}

// NewGitDestination returns a destination writing file inside the clone at
// repo on branch.
func NewGitDestination(repo, file, branch, author string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch, author: author}
}

func (d *GitDestination) String() string {
	return "git:" + filepath.Join(d.repo, d.file) + "@" + d.branch
}

func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// The branch may not exist on origin yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if _, err := d.git(ctx, "add", "--", d.file); err != nil {
		return err
	}

	changed, err := d.staged(ctx)
	if err != nil || !changed {
		return err
	}

	args := []string{"commit", "-m", gitCommitMessage}
	if d.author != "" {
		args = append(args, "--author", d.author)
	}
	if _, err := d.git(ctx, args...); err != nil {
		return err
	}
	_, err = d.git(ctx, "push", "origin", d.branch)
	return err
}

// staged reports whether the index differs from HEAD for the export file.
func (d *GitDestination) staged(ctx context.Context) (bool, error) {
	_, err := d.git(ctx, "diff", "--cached", "--quiet", "--", d.file)
	var exit *exec.ExitError
	switch {
	case err == nil:
		return false, nil
	case errors.As(err, &exit) && exit.ExitCode() == 1:
		return true, nil
	}
	return false, err
}

// git runs a git subcommand in the clone. Failures carry git's output.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", args[0], err)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return out.String(), nil
}
