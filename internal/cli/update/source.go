package update

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pirakansa/addonrepo/internal/cli/archive"
	"github.com/pirakansa/addonrepo/internal/cli/mirror"
	"github.com/pirakansa/addonrepo/internal/cli/release"
	"github.com/pirakansa/addonrepo/internal/cli/vcs"
	"github.com/pirakansa/addonrepo/pkg/addon"
	"github.com/pirakansa/addonrepo/pkg/config"
)

// Source obtains the tree of an addon at a version tag.
type Source interface {
	// Prepare refreshes whatever the source reads tags from.
	Prepare(ctx context.Context) error
	// Resolve returns the tag for explicit, or the latest version tag when
	// explicit is nil.
	Resolve(ctx context.Context, explicit *addon.Version) (addon.Tag, error)
	// Materialize makes the tree at tag available on disk.
	Materialize(ctx context.Context, tag addon.Tag) (*Tree, error)
}

// Tree is a materialized source tree.
type Tree struct {
	Dir      string
	Revision string
	cleanup  func()
}

// Close releases temporary storage behind the tree.
func (t *Tree) Close() {
	if t != nil && t.cleanup != nil {
		t.cleanup()
	}
}

// SourceFactory builds the Source for one addon.
type SourceFactory func(id, sourceURL string, opts config.AddonConfig) (Source, error)

// MirrorSources returns a factory of mirror backed sources under cacheDir.
func MirrorSources(cacheDir string, runner vcs.Runner, logger *log.Logger) SourceFactory {
	return func(id, sourceURL string, opts config.AddonConfig) (Source, error) {
		m := mirror.New(cacheDir, id, sourceURL,
			mirror.WithBranch(opts.Branch),
			mirror.WithRunner(runner),
			mirror.WithLogger(logger),
		)
		return &mirrorSource{mirror: m}, nil
	}
}

type mirrorSource struct {
	mirror *mirror.Mirror
}

func (s *mirrorSource) Prepare(ctx context.Context) error {
	return s.mirror.Sync(ctx)
}

func (s *mirrorSource) Resolve(ctx context.Context, explicit *addon.Version) (addon.Tag, error) {
	if explicit != nil {
		return s.mirror.FindTag(ctx, *explicit)
	}
	return s.mirror.LatestTag(ctx)
}

func (s *mirrorSource) Materialize(ctx context.Context, tag addon.Tag) (*Tree, error) {
	if err := s.mirror.Checkout(ctx, tag); err != nil {
		return nil, err
	}
	head, err := s.mirror.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", tag.Name, err)
	}
	return &Tree{Dir: s.mirror.Dir(), Revision: head}, nil
}

// ReleaseSources returns a factory of hosting API backed sources downloading
// the given artifact kind of each tag. Addons whose source URL carries no
// owner fall back to owner.
func ReleaseSources(client *release.Client, owner, artifact string, logger *log.Logger) SourceFactory {
	return func(id, sourceURL string, opts config.AddonConfig) (Source, error) {
		if logger == nil {
			logger = log.Default()
		}
		repo, err := release.ResolveRepo(sourceURL, owner, id)
		if err != nil {
			return nil, err
		}
		return &releaseSource{
			id:       id,
			client:   client,
			repo:     repo,
			artifact: artifact,
			digest:   opts.Digest,
			logger:   logger,
		}, nil
	}
}

type releaseSource struct {
	id       string
	client   *release.Client
	repo     release.Repo
	artifact string
	digest   string
	logger   *log.Logger
	tags     []release.RemoteTag
}

func (s *releaseSource) Prepare(ctx context.Context) error {
	tags, err := s.client.ListTags(ctx, s.repo)
	if err != nil {
		return fmt.Errorf("list tags of %s: %w", s.repo, err)
	}
	s.tags = tags
	return nil
}

func (s *releaseSource) Resolve(_ context.Context, explicit *addon.Version) (addon.Tag, error) {
	tags := release.VersionTags(s.tags)
	if explicit != nil {
		want := addon.TagFor(*explicit)
		for _, tag := range tags {
			if tag.Name == want {
				return tag, nil
			}
		}
		return addon.Tag{}, fmt.Errorf("could not find tagged version %s of %s: %w", want, s.id, mirror.ErrTagNotFound)
	}
	latest, ok := addon.LatestTag(tags)
	if !ok {
		return addon.Tag{}, fmt.Errorf("%s: %w", s.id, mirror.ErrNoMatchingTag)
	}
	return latest, nil
}

func (s *releaseSource) Materialize(ctx context.Context, tag addon.Tag) (*Tree, error) {
	remote, err := release.Find(s.tags, tag.Name)
	if err != nil {
		return nil, err
	}
	link, encoding, err := remote.Artifact(s.artifact)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.repo, err)
	}
	content, err := s.client.Download(ctx, link)
	if err != nil {
		return nil, err
	}
	if err := release.VerifyDigest(content, s.digest); err != nil {
		return nil, fmt.Errorf("verify %s: %w", link, err)
	}
	dir, err := os.MkdirTemp("", "addonrepo-release-*")
	if err != nil {
		return nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	written, err := archive.Extract(content, encoding, dir, 1)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("extract %s: %w", link, err)
	}
	s.logger.Debug("extracted release", "id", s.id, "tag", tag.Name, "encoding", encoding, "files", len(written))
	return &Tree{Dir: dir, Revision: link, cleanup: cleanup}, nil
}
