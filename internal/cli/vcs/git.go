package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Git is the narrow set of git operations used against one working tree.
type Git struct {
	Dir    string
	Runner Runner
}

// New returns a Git for dir. A nil runner selects ExecRunner.
func New(dir string, runner Runner) *Git {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Git{Dir: dir, Runner: runner}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	return g.Runner.Run(ctx, g.Dir, args...)
}

// Exists reports whether Dir holds a git working tree.
func (g *Git) Exists() bool {
	info, err := os.Stat(filepath.Join(g.Dir, ".git"))
	return err == nil && info.IsDir()
}

// Clone clones url into Dir. The parent directory is created first.
func (g *Git) Clone(ctx context.Context, url string) error {
	parent := filepath.Dir(g.Dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	_, err := g.Runner.Run(ctx, parent, "clone", "--quiet", url, g.Dir)
	return err
}

func (g *Git) Checkout(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "checkout", "--quiet", ref)
	return err
}

// Pull fast-forwards the current branch from remote/branch.
func (g *Git) Pull(ctx context.Context, remote, branch string) error {
	_, err := g.run(ctx, "pull", "--quiet", "--ff-only", remote, branch)
	return err
}

func (g *Git) FetchTags(ctx context.Context, remote string) error {
	_, err := g.run(ctx, "fetch", "--quiet", "--tags", remote)
	return err
}

// IsClean checks for unstaged changes, staged changes against HEAD and
// untracked files. All three must be absent.
func (g *Git) IsClean(ctx context.Context) (bool, error) {
	if _, err := g.run(ctx, "diff", "--quiet"); err != nil {
		if ExitCodeOf(err) == 1 {
			return false, nil
		}
		return false, err
	}
	if _, err := g.run(ctx, "diff", "--cached", "--quiet", "HEAD"); err != nil {
		if ExitCodeOf(err) == 1 {
			return false, nil
		}
		return false, err
	}
	out, err := g.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// Tags lists every tag name.
func (g *Git) Tags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// DefaultBranch resolves the branch origin/HEAD points at.
func (g *Git) DefaultBranch(ctx context.Context, remote string) (string, error) {
	out, err := g.run(ctx, "symbolic-ref", "--quiet", "--short", "refs/remotes/"+remote+"/HEAD")
	if err != nil {
		return "", err
	}
	ref := strings.TrimSpace(out)
	return strings.TrimPrefix(ref, remote+"/"), nil
}

// CurrentBranch returns the checked out branch, or "" when HEAD is detached.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		if ExitCodeOf(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Head returns the full hash of HEAD.
func (g *Git) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Add stages path, relative to Dir or absolute.
func (g *Git) Add(ctx context.Context, path string) error {
	_, err := g.run(ctx, "add", "--", path)
	return err
}

// Commit records the given paths only. Hooks are skipped.
func (g *Git) Commit(ctx context.Context, message string, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("commit %q: no paths", message)
	}
	args := append([]string{"commit", "--quiet", "--no-verify", "-m", message, "--"}, paths...)
	_, err := g.run(ctx, args...)
	return err
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
