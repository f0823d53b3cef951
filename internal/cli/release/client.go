package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pirakansa/addonrepo/internal/cli/archive"
	"github.com/pirakansa/addonrepo/pkg/addon"
	"github.com/pirakansa/addonrepo/pkg/config"
)

const tagsPerPage = 100

var ErrTagNotFound = errors.New("tag not found")

// Repo names a repository on the hosting service.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// RemoteTag is one entry of the hosting API tag listing.
type RemoteTag struct {
	Name       string `json:"name"`
	ZipballURL string `json:"zipball_url"`
	TarballURL string `json:"tarball_url"`
}

// Artifact returns the download URL of the zipball or tarball of the tag and
// the encoding to unpack it with. A URL whose path names an archive suffix
// (.tar.xz, .tar.zst, ...) overrides the default encoding of the kind.
func (t RemoteTag) Artifact(kind string) (string, string, error) {
	var link, encoding string
	switch kind {
	case config.ArtifactZipball, "":
		link, encoding = t.ZipballURL, archive.EncodingZip
	case config.ArtifactTarball:
		link, encoding = t.TarballURL, archive.EncodingTarGzip
	default:
		return "", "", fmt.Errorf("unknown release artifact %q", kind)
	}
	if link == "" {
		return "", "", fmt.Errorf("tag %s has no %s", t.Name, kind)
	}
	if parsed, err := url.Parse(link); err == nil {
		if detected, err := archive.DetectEncoding(parsed.Path); err == nil {
			encoding = detected
		}
	}
	return link, encoding, nil
}

// Client talks to a GitHub compatible hosting API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *log.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// ResolveRepo derives owner and name from a source URL such as
// https://github.com/owner/repo.git or git@github.com:owner/repo.git. When the
// URL has no owner segment, fallbackOwner and the addon id are used.
func ResolveRepo(sourceURL, fallbackOwner, addonID string) (Repo, error) {
	trimmed := strings.TrimSpace(sourceURL)
	var p string
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return Repo{}, err
		}
		p = parsed.Path
	} else if _, rest, ok := strings.Cut(trimmed, ":"); ok {
		p = rest
	}
	segments := strings.FieldsFunc(strings.TrimSuffix(p, ".git"), func(r rune) bool { return r == '/' })
	if len(segments) >= 2 {
		return Repo{Owner: segments[len(segments)-2], Name: segments[len(segments)-1]}, nil
	}
	if fallbackOwner == "" {
		return Repo{}, fmt.Errorf("cannot derive repository owner from %q", sourceURL)
	}
	return Repo{Owner: fallbackOwner, Name: addonID}, nil
}

// ListTags returns every tag of repo, following pagination.
func (c *Client) ListTags(ctx context.Context, repo Repo) ([]RemoteTag, error) {
	next := fmt.Sprintf("%s/repos/%s/%s/tags?per_page=%d", strings.TrimRight(c.BaseURL, "/"), repo.Owner, repo.Name, tagsPerPage)
	var tags []RemoteTag
	for next != "" {
		resp, err := c.get(ctx, next, "application/vnd.github+json")
		if err != nil {
			return nil, err
		}
		var page []RemoteTag
		err = json.NewDecoder(resp.Body).Decode(&page)
		link := resp.Header.Get("Link")
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", repo, err)
		}
		tags = append(tags, page...)
		next = nextLink(link)
	}
	c.logger().Debug("listed remote tags", "repo", repo.String(), "count", len(tags))
	return tags, nil
}

// Download fetches url into memory.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	c.logger().Info("downloading", "url", url)
	resp, err := c.get(ctx, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed: %s status=%d", url, resp.StatusCode)
	}
	return resp, nil
}

func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		target, params, ok := strings.Cut(part, ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}
		return strings.Trim(strings.TrimSpace(target), "<>")
	}
	return ""
}

// VersionTags keeps the tags whose names are version tags.
func VersionTags(tags []RemoteTag) []addon.Tag {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return addon.FilterVersionTags(names)
}

// Find returns the remote tag called name.
func Find(tags []RemoteTag, name string) (RemoteTag, error) {
	for _, tag := range tags {
		if tag.Name == name {
			return tag, nil
		}
	}
	return RemoteTag{}, fmt.Errorf("could not find tagged version %s: %w", name, ErrTagNotFound)
}
