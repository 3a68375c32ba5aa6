package gitlib

import (
	"fmt"
	"os"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"
)

// gitmodulesFile is the declaration file a repository with submodules carries.
const gitmodulesFile = ".gitmodules"

// HasSubmodules reports whether the workspace declares submodules.
func (r *Repository) HasSubmodules() bool {
	workdir := r.Workdir()
	if workdir == "" {
		return false
	}

	_, err := os.Stat(filepath.Join(workdir, gitmodulesFile))

	return err == nil
}

// SubmoduleInit writes submodule configuration for every declared submodule,
// the step that follows a fresh clone.
func (r *Repository) SubmoduleInit() error {
	err := r.repo.Submodules.Foreach(func(sub *git2go.Submodule, name string) error {
		initErr := sub.Init(true)
		if initErr != nil {
			return fmt.Errorf("init submodule %s: %w", name, initErr)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("init submodules: %w", err)
	}

	return nil
}

// SubmoduleUpdate checks out every submodule at its recorded revision.
func (r *Repository) SubmoduleUpdate() error {
	err := r.repo.Submodules.Foreach(func(sub *git2go.Submodule, name string) error {
		updateErr := sub.Update(true, &git2go.SubmoduleUpdateOptions{})
		if updateErr != nil {
			return fmt.Errorf("update submodule %s: %w", name, updateErr)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update submodules: %w", err)
	}

	return nil
}
