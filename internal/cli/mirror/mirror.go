package mirror

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pirakansa/addonrepo/internal/cli/vcs"
	"github.com/pirakansa/addonrepo/pkg/addon"
)

const (
	remoteName     = "origin"
	fallbackBranch = "master"
)

const (
	StateAbsent   State = "absent"
	StateClean    State = "clean"
	StateDirty    State = "dirty"
	StateDetached State = "detached"
)

var (
	ErrDirtyMirror   = errors.New("mirror has local changes")
	ErrNoMatchingTag = errors.New("no suitable tags found, ensure tag names are in the v0.1.2 format")
	ErrTagNotFound   = errors.New("tag not found")
)

// State is the lifecycle position of a mirror working tree.
type State string

// DirtyMirrorError reports a mirror with uncommitted or untracked changes.
// Mirrors are never cleaned automatically.
type DirtyMirrorError struct {
	ID  string
	Dir string
}

func (e *DirtyMirrorError) Error() string {
	return fmt.Sprintf("mirror of %s at %s has uncommitted or untracked changes; clean it up manually", e.ID, e.Dir)
}

func (e *DirtyMirrorError) Is(target error) bool {
	return target == ErrDirtyMirror
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithBranch pins the primary branch instead of following origin/HEAD.
func WithBranch(branch string) Option {
	return func(m *Mirror) { m.branch = branch }
}

// WithRunner replaces the git command runner.
func WithRunner(r vcs.Runner) Option {
	return func(m *Mirror) { m.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

// Mirror is the local clone of one addon's upstream repository, kept at
// <cacheDir>/<addon id>.
type Mirror struct {
	id     string
	url    string
	dir    string
	branch string
	runner vcs.Runner
	logger *log.Logger
	git    *vcs.Git
}

func New(cacheDir, id, sourceURL string, opts ...Option) *Mirror {
	m := &Mirror{
		id:  id,
		url: sourceURL,
		dir: filepath.Join(cacheDir, id),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	m.git = vcs.New(m.dir, m.runner)
	return m
}

func (m *Mirror) Dir() string {
	return m.dir
}

// Sync clones an absent mirror, or refreshes an existing one by checking out
// the primary branch and fast-forwarding it. A dirty mirror is left as is.
func (m *Mirror) Sync(ctx context.Context) error {
	if !m.git.Exists() {
		m.logger.Info("cloning mirror", "id", m.id, "source", m.url, "dir", m.dir)
		if err := m.git.Clone(ctx, m.url); err != nil {
			return fmt.Errorf("clone %s: %w", m.url, err)
		}
		return nil
	}
	if err := m.requireClean(ctx); err != nil {
		return err
	}
	branch, err := m.primaryBranch(ctx)
	if err != nil {
		return err
	}
	m.logger.Debug("refreshing mirror", "id", m.id, "branch", branch)
	if err := m.git.Checkout(ctx, branch); err != nil {
		return fmt.Errorf("checkout %s in mirror of %s: %w", branch, m.id, err)
	}
	if err := m.git.Pull(ctx, remoteName, branch); err != nil {
		return fmt.Errorf("pull mirror of %s: %w", m.id, err)
	}
	if err := m.git.FetchTags(ctx, remoteName); err != nil {
		return fmt.Errorf("fetch tags for mirror of %s: %w", m.id, err)
	}
	return nil
}

// State inspects the working tree without changing it.
func (m *Mirror) State(ctx context.Context) (State, error) {
	if !m.git.Exists() {
		return StateAbsent, nil
	}
	clean, err := m.git.IsClean(ctx)
	if err != nil {
		return "", err
	}
	if !clean {
		return StateDirty, nil
	}
	branch, err := m.git.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	if branch == "" {
		return StateDetached, nil
	}
	return StateClean, nil
}

// ListTags returns the version tags of the mirror in repository order.
func (m *Mirror) ListTags(ctx context.Context) ([]addon.Tag, error) {
	if err := m.requireClean(ctx); err != nil {
		return nil, err
	}
	names, err := m.git.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags of %s: %w", m.id, err)
	}
	return addon.FilterVersionTags(names), nil
}

// LatestTag returns the version tag with the highest version.
func (m *Mirror) LatestTag(ctx context.Context) (addon.Tag, error) {
	tags, err := m.ListTags(ctx)
	if err != nil {
		return addon.Tag{}, err
	}
	latest, ok := addon.LatestTag(tags)
	if !ok {
		return addon.Tag{}, fmt.Errorf("%s: %w", m.id, ErrNoMatchingTag)
	}
	return latest, nil
}

// FindTag returns the tag v<version>.
func (m *Mirror) FindTag(ctx context.Context, v addon.Version) (addon.Tag, error) {
	tags, err := m.ListTags(ctx)
	if err != nil {
		return addon.Tag{}, err
	}
	want := addon.TagFor(v)
	for _, tag := range tags {
		if tag.Name == want {
			return tag, nil
		}
	}
	return addon.Tag{}, fmt.Errorf("could not find tagged version %s of %s: %w", want, m.id, ErrTagNotFound)
}

// Checkout detaches the working tree at tag.
func (m *Mirror) Checkout(ctx context.Context, tag addon.Tag) error {
	if err := m.requireClean(ctx); err != nil {
		return err
	}
	m.logger.Debug("checking out tag", "id", m.id, "tag", tag.Name)
	if err := m.git.Checkout(ctx, "refs/tags/"+tag.Name); err != nil {
		return fmt.Errorf("checkout %s in mirror of %s: %w", tag.Name, m.id, err)
	}
	return nil
}

// Head returns the commit currently checked out.
func (m *Mirror) Head(ctx context.Context) (string, error) {
	return m.git.Head(ctx)
}

func (m *Mirror) requireClean(ctx context.Context) error {
	clean, err := m.git.IsClean(ctx)
	if err != nil {
		return fmt.Errorf("inspect mirror of %s: %w", m.id, err)
	}
	if !clean {
		return &DirtyMirrorError{ID: m.id, Dir: m.dir}
	}
	return nil
}

func (m *Mirror) primaryBranch(ctx context.Context) (string, error) {
	if m.branch != "" {
		return m.branch, nil
	}
	branch, err := m.git.DefaultBranch(ctx, remoteName)
	if err != nil || branch == "" {
		m.logger.Debug("origin/HEAD not set, using fallback branch", "id", m.id, "branch", fallbackBranch)
		return fallbackBranch, nil
	}
	m.branch = branch
	return branch, nil
}
