package vcs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Unversioned is the branch identifier of a workspace without a repository.
const Unversioned = "__unversioned__"

// ParseHead converts HEAD file contents into a branch identifier.
func ParseHead(content []byte) (string, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return "", ErrEmptyHead
	}

	if bytes.HasPrefix(content, []byte("ref:")) {
		ref := strings.TrimSpace(string(content[4:]))
		if ref == "" {
			return "", ErrEmptyHead
		}
		return strings.TrimPrefix(ref, "refs/heads/"), nil
	}

	// Detached HEAD - content is a commit hash
	return string(content), nil
}

// MarkerPath returns the HEAD file for the repository rooted at root.
// .git may be a directory or, for worktrees and submodules, a file holding
// "gitdir: <path>".
func MarkerPath(root string) (string, error) {
	gitPath := filepath.Join(root, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotRepository
		}
		return "", fmt.Errorf("stat .git: %w", err)
	}

	if info.IsDir() {
		return filepath.Join(gitPath, "HEAD"), nil
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("read .git file: %w", err)
	}
	content = bytes.TrimSpace(content)
	if !bytes.HasPrefix(content, []byte("gitdir:")) {
		return "", ErrNotRepository
	}

	gitDir := strings.TrimSpace(string(content[len("gitdir:"):]))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}
	return filepath.Join(filepath.Clean(gitDir), "HEAD"), nil
}

// Discover finds the repository root from any path within it.
func Discover(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}

	current := absPath
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrRepositoryNotFound
		}
		current = parent
	}
}
