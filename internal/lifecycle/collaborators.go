package lifecycle

import (
	"context"

	"github.com/extdeb/extdeb/internal/builder"
)

// PackageManager installs and removes distro packages.
type PackageManager interface {
	Update(ctx context.Context) error
	InstallDistroPackages(ctx context.Context, names []string) error
	RemoveDistroPackages(ctx context.Context, names []string) error
}

// Compiler builds an extension source tree.
type Compiler interface {
	Build(ctx context.Context, dir string, options []string) (*builder.Result, error)
	Clean(ctx context.Context, dir string) error
}

// Prompter asks the user questions.
type Prompter interface {
	Interactive() bool
	Confirm(question string, def bool) (bool, error)
	Choose(question string, options []string, def int) (int, error)
}

// Collaborators are the side-effecting services an Orchestrator drives.
type Collaborators struct {
	Packages PackageManager
	Compiler Compiler
	Prompter Prompter
}
