package gitdata

import (
	"context"

	"go.uber.org/zap"
)

const (
	baseBranchFieldNameConstant         = "base_branch"
	newBranchFieldNameConstant          = "new_branch"
	commitFieldNameConstant             = "commit"
	branchCreatedMessageConstant        = "created branch"
	branchExistedMessageConstant        = "branch already exists; reusing existing reference"
	branchAdvancedMessageConstant       = "advanced branch"
	branchDeletedMessageConstant        = "deleted branch"
	logFieldBranchConstant              = "branch"
	logFieldBaseBranchConstant          = "base_branch"
	logFieldReferenceConstant           = "reference"
	logFieldRequestedCommitConstant     = "requested_commit"
	logFieldExistingCommitConstant      = "existing_commit"
	branchTipMismatchMessageConstant    = "branch tip mismatch"
	branchCommitResolvedMessageConstant = "resolved branch commit"
)

// BranchManager reads, creates, advances and deletes branch references.
type BranchManager struct {
	logger  *zap.Logger
	service ObjectService
}

// NewBranchManager constructs a BranchManager around the provided service.
func NewBranchManager(logger *zap.Logger, service ObjectService) (*BranchManager, error) {
	if service == nil {
		return nil, ErrServiceNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BranchManager{logger: logger, service: service}, nil
}

// CurrentCommit resolves the commit the branch currently points at.
// A missing branch yields an error matching ErrNotFound.
func (manager *BranchManager) CurrentCommit(executionContext context.Context, repository RepositoryIdentifier, branchName string) (Commit, error) {
	if validationError := repository.Validate(); validationError != nil {
		return Commit{}, validationError
	}
	if branchError := ValidateBranchName(branchName); branchError != nil {
		return Commit{}, branchError
	}

	branch, branchLookupError := manager.service.GetBranch(executionContext, repository, branchName)
	if branchLookupError != nil {
		return Commit{}, classifyServiceError(OperationGetBranch, branchLookupError)
	}
	if branch.Commit.IsZero() {
		return Commit{}, NewOperationError(OperationGetBranch, ErrRemoteFailure, errEmptyHashResponse)
	}

	commit, commitLookupError := manager.service.GetCommit(executionContext, repository, branch.Commit)
	if commitLookupError != nil {
		return Commit{}, classifyServiceError(OperationGetCommit, commitLookupError)
	}
	if commit.Hash.IsZero() {
		commit.Hash = branch.Commit
	}

	manager.logger.Debug(
		branchCommitResolvedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldBranchConstant, branchName),
		zap.String(logFieldCommitConstant, commit.Hash.String()),
	)

	return commit, nil
}

// CreateBranch points a new branch at the current tip of baseBranchName.
// When the branch already exists the existing reference is returned with the
// BranchAlreadyExisted outcome; its tip may predate the base branch tip.
func (manager *BranchManager) CreateBranch(executionContext context.Context, repository RepositoryIdentifier, baseBranchName string, newBranchName string) (BranchCreation, error) {
	if validationError := repository.Validate(); validationError != nil {
		return BranchCreation{}, validationError
	}
	if baseError := validateBranchNameField(baseBranchFieldNameConstant, baseBranchName); baseError != nil {
		return BranchCreation{}, baseError
	}
	if newError := validateBranchNameField(newBranchFieldNameConstant, newBranchName); newError != nil {
		return BranchCreation{}, newError
	}

	baseBranch, baseLookupError := manager.service.GetBranch(executionContext, repository, baseBranchName)
	if baseLookupError != nil {
		return BranchCreation{}, classifyServiceError(OperationGetBranch, baseLookupError)
	}

	referenceName := BranchReferenceName(newBranchName)
	createdReference, creationError := manager.service.CreateRef(executionContext, repository, referenceName, baseBranch.Commit)
	if creationError == nil {
		manager.logger.Info(
			branchCreatedMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.String()),
			zap.String(logFieldBranchConstant, newBranchName),
			zap.String(logFieldBaseBranchConstant, baseBranchName),
			zap.String(logFieldCommitConstant, createdReference.Commit.String()),
		)
		return BranchCreation{Outcome: BranchCreated, Ref: completeReference(createdReference, referenceName, baseBranch.Commit)}, nil
	}

	classifiedCreationError := classifyServiceError(OperationCreateRef, creationError)
	if !IsConflict(classifiedCreationError) {
		return BranchCreation{}, classifiedCreationError
	}

	existingReference, referenceLookupError := manager.service.GetRef(executionContext, repository, referenceName)
	if referenceLookupError != nil {
		return BranchCreation{}, classifyServiceError(OperationGetRef, referenceLookupError)
	}

	manager.logger.Info(
		branchExistedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldBranchConstant, newBranchName),
		zap.String(logFieldRequestedCommitConstant, baseBranch.Commit.String()),
		zap.String(logFieldExistingCommitConstant, existingReference.Commit.String()),
	)

	return BranchCreation{Outcome: BranchAlreadyExisted, Ref: completeReference(existingReference, referenceName, "")}, nil
}

// UpdateRef advances the branch to commit without forcing. The caller must
// have built commit on top of the branch tip; if the tip moved in the
// meantime the service rejects the update with ErrConflict and the branch
// keeps pointing at the other actor's commit.
func (manager *BranchManager) UpdateRef(executionContext context.Context, repository RepositoryIdentifier, branchName string, commit Hash) (BranchRef, error) {
	if validationError := repository.Validate(); validationError != nil {
		return BranchRef{}, validationError
	}
	if branchError := ValidateBranchName(branchName); branchError != nil {
		return BranchRef{}, branchError
	}
	if commitError := commit.Validate(commitFieldNameConstant); commitError != nil {
		return BranchRef{}, commitError
	}

	referenceName := BranchReferenceName(branchName)
	updatedReference, updateError := manager.service.UpdateRef(executionContext, repository, referenceName, commit, false)
	if updateError != nil {
		return BranchRef{}, classifyServiceError(OperationUpdateRef, updateError)
	}

	updatedReference = completeReference(updatedReference, referenceName, commit)
	if updatedReference.Commit != commit {
		manager.logger.Warn(
			branchTipMismatchMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.String()),
			zap.String(logFieldReferenceConstant, referenceName),
			zap.String(logFieldRequestedCommitConstant, commit.String()),
			zap.String(logFieldExistingCommitConstant, updatedReference.Commit.String()),
		)
		return BranchRef{}, NewOperationError(OperationUpdateRef, ErrConflict, nil)
	}

	manager.logger.Info(
		branchAdvancedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.String(logFieldBranchConstant, branchName),
		zap.String(logFieldCommitConstant, commit.String()),
	)

	return updatedReference, nil
}

// DeleteBranch removes the branch reference. A missing branch yields ErrNotFound.
func (manager *BranchManager) DeleteBranch(executionContext context.Context, repository RepositoryIdentifier, branchName string) error {
	if validationError := repository.Validate(); validationError != nil {
		return validationError
	}
	if branchError := ValidateBranchName(branchName); branchError != nil {
		return branchError
	}

	if deletionError := manager.service.DeleteRef(executionContext, repository, BranchReferenceName(branchName)); deletionError != nil {
		return classifyServiceError(OperationDeleteRef, deletionError)
	}

	manager.logger.Info(branchDeletedMessageConstant, zap.String(logFieldRepositoryConstant, repository.String()), zap.String(logFieldBranchConstant, branchName))
	return nil
}

func completeReference(reference BranchRef, referenceName string, fallbackCommit Hash) BranchRef {
	if len(reference.Name) == 0 {
		reference.Name = referenceName
	}
	if reference.Commit.IsZero() {
		reference.Commit = fallbackCommit
	}
	return reference
}
