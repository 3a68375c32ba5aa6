// Package workspace drives a build workspace to a known state relative to a
// remote repository: clone if absent, fetch, check out the target branch,
// optionally integrate another branch and scrub untracked files. The
// procedure is convergent: it can be repeated safely from any starting
// state (absent clone, stale clone, already checked out).
package workspace

// Config is the immutable per-project repository configuration.
type Config struct {
	// Source is the remote repository location, a URL or local path.
	Source string

	// Branch is the target branch name. It may contain unexpanded
	// build-parameter placeholders.
	Branch string

	// Clean removes untracked and ignored files after checkout.
	Clean bool

	// Merge enables integrating Branch into MergeTarget before building.
	Merge bool

	// MergeTarget is the branch Branch is merged onto. May contain
	// placeholders like Branch.
	MergeTarget string

	// BrowserURL optionally links commits to a repository browser.
	BrowserURL string
}
