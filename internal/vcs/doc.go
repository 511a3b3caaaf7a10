// Package vcs detects the active source-control branch of a workspace.
//
// The Detector reads a single marker file (the repository's HEAD) and turns
// its contents into a branch identifier:
//
//	ref: refs/heads/feature/x   ->  feature/x
//	ref: refs/remotes/origin/y  ->  refs/remotes/origin/y
//	3f1c...e9 (detached)        ->  3f1c...e9
//
// When no repository is found the identifier is Unversioned and no watch is
// installed. Subscribers are notified only when a re-read yields a value
// different from the previous one; repeated file events with unchanged
// content are ignored. Read failures keep the last known value.
package vcs
