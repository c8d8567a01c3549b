package gitdata

import (
	"context"

	"go.uber.org/zap"
)

const (
	baseTreeFieldNameConstant      = "base_tree"
	treeComposedMessageConstant    = "composed tree"
	treeUnchangedMessageConstant   = "no tree entries staged; reusing base tree"
	logFieldBaseTreeConstant       = "base_tree"
	logFieldTreeConstant           = "tree"
	logFieldEntryCountConstant     = "entry_count"
	logFieldDuplicateCountConstant = "duplicate_count"
)

// TreeComposer layers sparse tree entries over an existing base tree.
type TreeComposer struct {
	logger  *zap.Logger
	service ObjectService
}

// NewTreeComposer constructs a TreeComposer around the provided service.
func NewTreeComposer(logger *zap.Logger, service ObjectService) (*TreeComposer, error) {
	if service == nil {
		return nil, ErrServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeComposer{logger: logger, service: service}, nil
}

// ComposeTree creates a tree holding every path of baseTree plus the staged
// entries. Entries sharing a path collapse to the last one staged. When no
// entries are staged the base tree is returned unchanged and nothing is sent
// to the service.
func (composer *TreeComposer) ComposeTree(executionContext context.Context, repository RepositoryIdentifier, baseTree Hash, entries []TreeEntry) (Hash, error) {
	if validationError := repository.Validate(); validationError != nil {
		return "", validationError
	}

	normalizedEntries, normalizationError := NormalizeTreeEntries(entries)
	if normalizationError != nil {
		return "", normalizationError
	}

	if len(normalizedEntries) == 0 {
		if hashError := baseTree.Validate(baseTreeFieldNameConstant); hashError != nil {
			return "", hashError
		}
		composer.logger.Debug(treeUnchangedMessageConstant, zap.String(logFieldRepositoryConstant, repository.String()), zap.String(logFieldBaseTreeConstant, baseTree.String()))
		return baseTree, nil
	}

	if !baseTree.IsZero() {
		if hashError := baseTree.Validate(baseTreeFieldNameConstant); hashError != nil {
			return "", hashError
		}
	}

	treeHash, creationError := composer.service.CreateTree(executionContext, repository, baseTree, normalizedEntries)
	if creationError != nil {
		return "", classifyServiceError(OperationCreateTree, creationError)
	}
	if treeHash.IsZero() {
		return "", NewOperationError(OperationCreateTree, ErrRemoteFailure, errEmptyHashResponse)
	}

	composer.logger.Debug(
		treeComposedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldBaseTreeConstant, baseTree.String()),
		zap.String(logFieldTreeConstant, treeHash.String()),
		zap.Int(logFieldEntryCountConstant, len(normalizedEntries)),
		zap.Int(logFieldDuplicateCountConstant, len(entries)-len(normalizedEntries)),
	)

	return treeHash, nil
}

// NormalizeTreeEntries validates entries, applies the file mode and blob type
// defaults, and collapses duplicate paths so that the last staged entry wins.
// Paths keep the position of their first occurrence.
func NormalizeTreeEntries(entries []TreeEntry) ([]TreeEntry, error) {
	normalizedEntries := make([]TreeEntry, 0, len(entries))
	positionByPath := make(map[string]int, len(entries))

	for _, entry := range entries {
		normalizedEntry, entryError := entry.normalize()
		if entryError != nil {
			return nil, entryError
		}
		if existingPosition, seen := positionByPath[normalizedEntry.Path]; seen {
			normalizedEntries[existingPosition] = normalizedEntry
			continue
		}
		positionByPath[normalizedEntry.Path] = len(normalizedEntries)
		normalizedEntries = append(normalizedEntries, normalizedEntry)
	}

	return normalizedEntries, nil
}
