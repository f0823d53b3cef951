package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/pirakansa/addonrepo/internal/cli/archive"
	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/pkg/config"
)

func TestResolveRepo(t *testing.T) {
	cases := []struct {
		source string
		want   Repo
	}{
		{source: "https://github.com/xbmc-catchuptv-au/plugin.video.demo.git", want: Repo{Owner: "xbmc-catchuptv-au", Name: "plugin.video.demo"}},
		{source: "https://github.com/owner/repo", want: Repo{Owner: "owner", Name: "repo"}},
		{source: "git@github.com:owner/repo.git", want: Repo{Owner: "owner", Name: "repo"}},
		{source: "https://example.com/repo", want: Repo{Owner: "fallback", Name: "addon.id"}},
	}
	for _, tc := range cases {
		got, err := ResolveRepo(tc.source, "fallback", "addon.id")
		if err != nil {
			t.Fatalf("ResolveRepo(%q) returned error: %v", tc.source, err)
		}
		if got != tc.want {
			t.Fatalf("ResolveRepo(%q) = %+v, want %+v", tc.source, got, tc.want)
		}
	}
	if _, err := ResolveRepo("https://example.com/repo", "", "addon.id"); err == nil {
		t.Fatalf("expected error without fallback owner")
	}
}

func TestListTagsFollowsPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/demo/tags" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var page []RemoteTag
		switch r.URL.Query().Get("page") {
		case "":
			page = []RemoteTag{{Name: "v1.0.0"}, {Name: "nightly"}}
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/owner/demo/tags?page=2>; rel="next", <%s/repos/owner/demo/tags?page=2>; rel="last"`, server.URL, server.URL))
		case "2":
			page = []RemoteTag{{Name: "v1.10.0"}, {Name: "v1.2.0"}}
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Token: "token", Logger: log.New(io.Discard)}
	tags, err := client.ListTags(context.Background(), Repo{Owner: "owner", Name: "demo"})
	if err != nil {
		t.Fatalf("ListTags returned error: %v", err)
	}
	if len(tags) != 4 {
		t.Fatalf("expected 4 tags across pages, got %v", tags)
	}
	versions := VersionTags(tags)
	if len(versions) != 3 {
		t.Fatalf("expected 3 version tags, got %v", versions)
	}
	if _, err := Find(tags, "v1.2.0"); err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if _, err := Find(tags, "v9.0"); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}

func TestDownloadReportsHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			_, _ = w.Write([]byte("payload"))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Logger: log.New(io.Discard)}
	body, err := client.Download(context.Background(), server.URL+"/ok")
	if err != nil || string(body) != "payload" {
		t.Fatalf("Download = %q, %v", body, err)
	}
	if _, err := client.Download(context.Background(), server.URL+"/fail"); err == nil {
		t.Fatalf("expected HTTP status failure")
	}
}

func TestVerifyDigest(t *testing.T) {
	content := []byte("content")
	cases := []struct {
		name   string
		digest string
	}{
		{name: DigestAlgorithmBLAKE3, digest: shared.BLAKE3Hex(content)},
		{name: DigestAlgorithmSHA256, digest: shared.SHA256Hex(content)},
		{name: DigestAlgorithmMD5, digest: shared.MD5Hex(content)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := VerifyDigest(content, tc.name+":"+tc.digest); err != nil {
				t.Fatalf("valid digest rejected: %v", err)
			}
			if err := VerifyDigest(content, tc.name+":"+tc.digest+"00"); !errors.Is(err, ErrDigestMismatch) {
				t.Fatalf("expected mismatch, got %v", err)
			}
		})
	}
	if err := VerifyDigest(content, ""); err != nil {
		t.Fatalf("empty digest must pass: %v", err)
	}
	for _, value := range []string{"blake3", "crc32:abcd", "sha256:zz"} {
		if err := VerifyDigest(content, value); err == nil {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}

func TestRemoteTagArtifact(t *testing.T) {
	tag := RemoteTag{
		Name:       "v1.0",
		ZipballURL: "https://api.example.com/repos/owner/demo/zipball/v1.0",
		TarballURL: "https://api.example.com/repos/owner/demo/tarball/v1.0",
	}
	cases := []struct {
		name         string
		tag          RemoteTag
		kind         string
		wantLink     string
		wantEncoding string
	}{
		{name: "zipball", tag: tag, kind: config.ArtifactZipball, wantLink: tag.ZipballURL, wantEncoding: archive.EncodingZip},
		{name: "tarball", tag: tag, kind: config.ArtifactTarball, wantLink: tag.TarballURL, wantEncoding: archive.EncodingTarGzip},
		{
			name:         "suffix wins",
			tag:          RemoteTag{Name: "v1.0", TarballURL: "https://cdn.example.com/demo-1.0.tar.xz?token=x"},
			kind:         config.ArtifactTarball,
			wantLink:     "https://cdn.example.com/demo-1.0.tar.xz?token=x",
			wantEncoding: archive.EncodingTarXz,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			link, encoding, err := tc.tag.Artifact(tc.kind)
			if err != nil {
				t.Fatalf("Artifact returned error: %v", err)
			}
			if link != tc.wantLink || encoding != tc.wantEncoding {
				t.Fatalf("Artifact = %s, %s; want %s, %s", link, encoding, tc.wantLink, tc.wantEncoding)
			}
		})
	}
	if _, _, err := (RemoteTag{Name: "v1.0", TarballURL: tag.TarballURL}).Artifact(config.ArtifactZipball); err == nil {
		t.Fatalf("expected error for a missing zipball")
	}
	if _, _, err := tag.Artifact("rar"); err == nil {
		t.Fatalf("expected error for an unknown artifact kind")
	}
}
