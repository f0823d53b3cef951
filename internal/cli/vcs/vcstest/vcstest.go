// Package vcstest builds throwaway git repositories for tests.
package vcstest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Branch is the branch every repository created here starts on.
const Branch = "master"

// RequireGit skips the test when no git binary is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// Run runs git in dir and returns trimmed stdout.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates a repository in dir with a local identity.
func InitRepo(t testing.TB, dir string) string {
	t.Helper()
	RequireGit(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	Run(t, dir, "init", "--quiet")
	Run(t, dir, "symbolic-ref", "HEAD", "refs/heads/"+Branch)
	Configure(t, dir)
	return dir
}

// Configure sets the identity and disables signing for dir.
func Configure(t testing.TB, dir string) {
	t.Helper()
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test")
	Run(t, dir, "config", "commit.gpgsign", "false")
	Run(t, dir, "config", "tag.gpgsign", "false")
}

// WriteFiles writes files relative to dir.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// Commit writes files and commits everything in dir.
func Commit(t testing.TB, dir string, files map[string]string, message string) {
	t.Helper()
	WriteFiles(t, dir, files)
	Run(t, dir, "add", "--all")
	Run(t, dir, "commit", "--quiet", "--allow-empty", "-m", message)
}

// Tag creates a lightweight tag at HEAD.
func Tag(t testing.TB, dir, name string) {
	t.Helper()
	Run(t, dir, "tag", name)
}
