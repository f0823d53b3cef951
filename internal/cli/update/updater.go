package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pirakansa/addonrepo/internal/cli/archive"
	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/internal/cli/taskrun"
	"github.com/pirakansa/addonrepo/internal/cli/vcs"
	"github.com/pirakansa/addonrepo/pkg/addon"
	"github.com/pirakansa/addonrepo/pkg/config"
)

var ErrVersionNotNewer = errors.New("version is not newer")

// VersionNotNewerError reports a target older than the indexed version.
type VersionNotNewerError struct {
	ID      string
	Current addon.Version
	Target  addon.Version
}

func (e *VersionNotNewerError) Error() string {
	return fmt.Sprintf("%s: version %s is older than the current version %s; use --force to downgrade", e.ID, e.Target, e.Current)
}

func (e *VersionNotNewerError) Is(target error) bool {
	return target == ErrVersionNotNewer
}

// auxFile is copied from the source tree into the addon output directory.
type auxFile struct {
	src      string
	dst      func(v addon.Version) string
	optional bool
}

var auxFiles = []auxFile{
	{src: "icon.png", dst: func(addon.Version) string { return "icon.png" }},
	{src: "changelog.txt", dst: func(v addon.Version) string { return fmt.Sprintf("changelog-%s.txt", v) }},
	{src: "fanart.jpg", dst: func(addon.Version) string { return "fanart.jpg" }, optional: true},
}

// Request is one update invocation.
type Request struct {
	AddonID  string
	Version  *addon.Version
	Force    bool
	Commit   bool
	Strategy string
	Digest   string
}

// Result describes an applied update.
type Result struct {
	AddonID   string
	Previous  addon.Version
	Tag       addon.Tag
	Archive   string
	Entries   int
	Revision  string
	Paths     []string
	Committed bool
}

// Updater applies upstream versions of addons to the repository at Root.
type Updater struct {
	Index      *addon.Index
	Config     *config.Config
	Root       string
	Repo       *vcs.Git
	Sources    map[string]SourceFactory
	Logger     *log.Logger
	TaskOutput taskrun.Output
	Now        func() time.Time

	staged []string
}

// New wires an Updater to idx. Index saves are staged for commit.
func New(idx *addon.Index, cfg *config.Config, root string, repo *vcs.Git, sources map[string]SourceFactory, logger *log.Logger) *Updater {
	if logger == nil {
		logger = log.Default()
	}
	u := &Updater{
		Index:   idx,
		Config:  cfg,
		Root:    root,
		Repo:    repo,
		Sources: sources,
		Logger:  logger,
		Now:     time.Now,
	}
	idx.OnSave(u.stage)
	return u
}

func (u *Updater) stage(paths ...string) {
	u.staged = append(u.staged, paths...)
}

// Run performs one update. Validation happens before anything in the
// repository is written.
func (u *Updater) Run(ctx context.Context, req Request) (*Result, error) {
	u.staged = nil
	m, err := u.Index.Get(req.AddonID)
	if err != nil {
		return nil, err
	}
	sourceURL, err := m.Source()
	if err != nil {
		return nil, err
	}
	current, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}
	opts := u.Config.ForAddon(m.ID)
	if req.Strategy != "" {
		opts.Strategy = req.Strategy
	}
	if req.Digest != "" {
		opts.Digest = req.Digest
	}
	factory, ok := u.Sources[opts.Strategy]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
	source, err := factory(m.ID, sourceURL, opts)
	if err != nil {
		return nil, err
	}

	u.Logger.Info("preparing source", "id", m.ID, "strategy", opts.Strategy, "source", sourceURL)
	if err := source.Prepare(ctx); err != nil {
		return nil, err
	}
	tag, err := source.Resolve(ctx, req.Version)
	if err != nil {
		return nil, err
	}
	if tag.Version.Less(current) && !req.Force {
		return nil, &VersionNotNewerError{ID: m.ID, Current: current, Target: tag.Version}
	}
	if tag.Version.Less(current) {
		u.Logger.Warn("forcing downgrade", "id", m.ID, "current", current.String(), "target", tag.Version.String())
	}

	var lock *lockLedger
	if u.Config.LockEnabled() {
		if lock, err = u.loadLock(); err != nil {
			return nil, err
		}
	}

	tree, err := source.Materialize(ctx, tag)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	buildDir := tree.Dir
	if len(opts.BeforePackage) > 0 {
		staging, err := u.runHooks(ctx, m.ID, tree.Dir, opts.BeforePackage)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(staging)
		buildDir = staging
	}

	res := &Result{AddonID: m.ID, Previous: current, Tag: tag, Revision: tree.Revision}
	outDir := filepath.Join(u.Root, m.ID)
	archivePath := filepath.Join(outDir, fmt.Sprintf("%s-%s.zip", m.ID, tag.Version))
	if backup, err := shared.BackupFile(archivePath, u.Config.Backup, u.Now()); err != nil {
		return nil, fmt.Errorf("backup %s: %w", archivePath, err)
	} else if backup != "" {
		u.Logger.Info("backed up existing archive", "path", backup)
	}
	written, err := archive.Write(buildDir, archivePath, m.ID, archive.Rules{
		Extensions: u.Config.Exclude.Extensions,
		Files:      u.Config.Exclude.Files,
		Dirs:       u.Config.Exclude.Dirs,
	})
	if err != nil {
		return nil, err
	}
	res.Archive = written.Path
	res.Entries = len(written.Entries)
	u.stage(written.Path)
	u.Logger.Info("wrote archive", "path", written.Path, "entries", res.Entries)

	for _, aux := range auxFiles {
		src := filepath.Join(tree.Dir, aux.src)
		dst := filepath.Join(outDir, aux.dst(tag.Version))
		if _, err := os.Stat(src); err != nil {
			if !aux.optional {
				u.Logger.Warn("auxiliary file missing, skipped", "id", m.ID, "file", aux.src)
			}
			continue
		}
		if err := shared.CopyFile(src, dst); err != nil {
			return nil, fmt.Errorf("copy %s: %w", aux.src, err)
		}
		u.stage(dst)
	}

	if lock != nil {
		if err := u.recordLock(lock, m.ID, sourceURL, opts.Strategy, tag, tree.Revision, written.Path); err != nil {
			return nil, err
		}
	}

	// The index save is the last write; everything before it can fail
	// without leaving a half-updated index behind.
	if err := m.SetVersion(tag.Version); err != nil {
		return nil, err
	}
	u.Logger.Info("updated index", "id", m.ID, "from", current.String(), "to", tag.Version.String())

	res.Paths = append([]string(nil), u.staged...)
	if req.Commit {
		if err := u.commit(ctx, m.ID, tag.Version); err != nil {
			return res, err
		}
		res.Committed = true
	}
	return res, nil
}

func (u *Updater) runHooks(ctx context.Context, id, treeDir string, names []string) (string, error) {
	staging, err := os.MkdirTemp("", "addonrepo-build-*")
	if err != nil {
		return "", err
	}
	if err := copyTree(treeDir, staging, u.Config.Exclude.Dirs); err != nil {
		_ = os.RemoveAll(staging)
		return "", fmt.Errorf("stage %s: %w", id, err)
	}
	u.Logger.Info("running before_package tasks", "id", id, "tasks", names)
	if err := taskrun.RunSequence(ctx, u.Config.Tasks, names, staging, u.TaskOutput); err != nil {
		_ = os.RemoveAll(staging)
		return "", err
	}
	return staging, nil
}

type lockLedger struct {
	path string
	file *LockFile
}

func (u *Updater) loadLock() (*lockLedger, error) {
	lockPath := u.Config.LockFile
	if !filepath.IsAbs(lockPath) {
		lockPath = filepath.Join(u.Root, lockPath)
	}
	lock, err := LoadLock(lockPath)
	if err != nil {
		return nil, fmt.Errorf("load lock %s: %w", lockPath, err)
	}
	return &lockLedger{path: lockPath, file: lock}, nil
}

func (u *Updater) recordLock(lock *lockLedger, id, sourceURL, strategy string, tag addon.Tag, revision, archivePath string) error {
	digest, err := shared.FileBLAKE3Hex(archivePath)
	if err != nil {
		return err
	}
	lock.file.Addons[id] = LockEntry{
		Version:       tag.Version.String(),
		Tag:           tag.Name,
		SourceURL:     sourceURL,
		Strategy:      strategy,
		Revision:      revision,
		ArchiveBLAKE3: digest,
		UpdatedAt:     u.Now().UTC().Format(time.RFC3339),
	}
	if err := SaveLock(lock.path, lock.file); err != nil {
		return fmt.Errorf("save lock %s: %w", lock.path, err)
	}
	u.stage(lock.path)
	return nil
}

// commit stages every registered path and records them in one commit. A path
// that cannot be staged is left out with a warning.
func (u *Updater) commit(ctx context.Context, id string, v addon.Version) error {
	if u.Repo == nil {
		return fmt.Errorf("commit %s: no repository configured", id)
	}
	var added []string
	for _, p := range u.staged {
		if err := u.Repo.Add(ctx, p); err != nil {
			u.Logger.Warn("git add failed", "path", p, "err", err)
			continue
		}
		added = append(added, p)
	}
	message := fmt.Sprintf("Update %s to %s", id, addon.TagFor(v))
	if err := u.Repo.Commit(ctx, message, added...); err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	u.Logger.Info("committed", "message", message, "paths", len(added))
	return nil
}
