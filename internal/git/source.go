package git

import (
	stderrors "errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
)

// Source describes the checkout the notebooks are read from.
type Source struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitempty"` // empty on a detached HEAD
	Dirty  bool   `json:"dirty"`
}

// ShortCommit returns the abbreviated commit hash.
func (s Source) ShortCommit() string {
	if len(s.Commit) > 7 {
		return s.Commit[:7]
	}
	return s.Commit
}

// ErrNotRepository is returned when dir is not inside a git work tree.
var ErrNotRepository = git.ErrRepositoryNotExists

// ReadSource opens the repository containing dir and reports its HEAD.
func ReadSource(dir string) (Source, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Source{}, errors.WrapError(err, errors.CategoryNotFound, "open source repository").
			WithContext("dir", dir).Build()
	}
	head, err := repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return Source{}, errors.WrapError(err, errors.CategoryNotFound, "source repository has no commits").
				WithContext("dir", dir).Build()
		}
		return Source{}, errors.FileSystemError("read HEAD").WithCause(err).
			WithContext("dir", dir).Build()
	}

	src := Source{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		src.Branch = head.Name().Short()
	}
	if wt, werr := repo.Worktree(); werr == nil {
		if status, serr := wt.Status(); serr == nil {
			src.Dirty = !status.IsClean()
		}
	}
	return src, nil
}

// CheckBranch returns a warning when the checkout is not on the expected
// branch. An empty expectation disables the check.
func CheckBranch(src Source, expected string) error {
	if expected == "" || src.Branch == expected {
		return nil
	}
	actual := src.Branch
	if actual == "" {
		actual = "detached HEAD at " + src.ShortCommit()
	}
	return errors.BuildError(fmt.Sprintf("notebooks are built from %s, expected branch %s", actual, expected)).
		Warning().
		WithContext("branch", src.Branch).
		WithContext("expected", expected).
		Build()
}
