package vcs

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Action classifies a file-level change between two commits.
type Action string

const (
	ActionAdd    Action = "add"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
	ActionRename Action = "rename"
)

// FileChange is one file touched between two commits. OldPath is set
// only for renames. FileChanges are produced per sync and never
// persisted.
type FileChange struct {
	Path    string
	OldPath string
	Action  Action
}

// Detector computes file-level diffs between two commits of a
// repository.
type Detector struct {
	logger *zap.Logger
}

// NewDetector creates a change detector.
func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger}
}

// Diff classifies every path touched between fromCommit and toCommit.
//
// An empty fromCommit means no prior index exists: every file tracked at
// toCommit is returned as an add, which is equivalent to requiring a
// full index. Rename detection is delegated to go-git's similarity
// heuristic; renamed files carry their OldPath.
func (d *Detector) Diff(ctx context.Context, repoPath, fromCommit, toCommit string) ([]FileChange, error) {
	if fromCommit == "" {
		files, err := TrackedFiles(ctx, repoPath, toCommit)
		if err != nil {
			return nil, err
		}
		changes := make([]FileChange, 0, len(files))
		for _, f := range files {
			changes = append(changes, FileChange{Path: f, Action: ActionAdd})
		}
		return changes, nil
	}

	fromTree, err := commitTree(repoPath, fromCommit)
	if err != nil {
		return nil, err
	}
	toTree, err := commitTree(repoPath, toCommit)
	if err != nil {
		return nil, err
	}

	rawChanges, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", fromCommit, toCommit, err)
	}

	changes := make([]FileChange, 0, len(rawChanges))
	for _, ch := range rawChanges {
		fromName := ch.From.Name
		toName := ch.To.Name

		switch {
		case fromName == "" && toName != "":
			changes = append(changes, FileChange{Path: toName, Action: ActionAdd})
		case fromName != "" && toName == "":
			changes = append(changes, FileChange{Path: fromName, Action: ActionDelete})
		case fromName != toName:
			changes = append(changes, FileChange{Path: toName, OldPath: fromName, Action: ActionRename})
		default:
			changes = append(changes, FileChange{Path: toName, Action: ActionModify})
		}
	}

	d.logger.Debug("computed diff",
		zap.String("repo", repoPath),
		zap.String("from", fromCommit),
		zap.String("to", toCommit),
		zap.Int("changes", len(changes)),
	)
	return changes, nil
}
