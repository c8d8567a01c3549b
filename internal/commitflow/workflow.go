package commitflow

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const (
	workflowCompletedMessageConstant = "committed files to branch"
	workflowFailedMessageConstant    = "commit workflow failed"
	workflowRetryMessageConstant     = "branch moved during commit; rebuilding on the new tip"
	stateTransitionMessageConstant   = "commit workflow state changed"
	logFieldRepositoryConstant       = "repository"
	logFieldBranchConstant           = "branch"
	logFieldStateConstant            = "state"
	logFieldCommitConstant           = "commit"
	logFieldParentConstant           = "parent"
	logFieldAttemptConstant          = "attempt"
	logFieldFileCountConstant        = "file_count"
	logFieldBranchOutcomeConstant    = "branch_outcome"
)

// State enumerates the workflow stages.
type State string

// Workflow states in execution order. StateFailed is absorbing.
const (
	StateIdle          State = State("idle")
	StateBranchEnsured State = State("branch_ensured")
	StateFilesStaged   State = State("files_staged")
	StateTreeComposed  State = State("tree_composed")
	StateCommitCreated State = State("commit_created")
	StateRefUpdated    State = State("ref_updated")
	StateDone          State = State("done")
	StateFailed        State = State("failed")
)

// FileChange describes the desired contents of one path.
type FileChange struct {
	Path     string
	Content  string
	Encoding gitdata.BlobEncoding
	Mode     gitdata.TreeEntryMode
}

// Request describes one atomic commit. BaseBranch seeds TargetBranch when the
// target does not exist yet and defaults to TargetBranch.
type Request struct {
	Repository   gitdata.RepositoryIdentifier
	BaseBranch   string
	TargetBranch string
	Message      string
	Files        []FileChange
}

// Result reports how far the workflow progressed and the objects it produced.
type Result struct {
	State       State
	Branch      gitdata.BranchCreation
	Parent      gitdata.Hash
	Tree        gitdata.Hash
	Commit      gitdata.Hash
	StagedFiles int
	Attempts    int
}

// Dependencies enumerates collaborators required by the workflow.
type Dependencies struct {
	Logger  *zap.Logger
	Service gitdata.ObjectService
}

// Options tunes workflow behavior.
type Options struct {
	// ConflictRetryLimit bounds how many times a rejected branch update is
	// rebuilt on the new tip. Zero keeps first-writer-wins semantics.
	ConflictRetryLimit int
}

// Workflow runs atomic multi-file commits. A Workflow holds no per-commit
// state and may be shared by concurrent callers targeting distinct branches.
type Workflow struct {
	logger   *zap.Logger
	blobs    *gitdata.BlobStore
	trees    *gitdata.TreeComposer
	commits  *gitdata.CommitBuilder
	branches *gitdata.BranchManager
	options  Options
}

// NewWorkflow validates dependencies and constructs a Workflow.
func NewWorkflow(dependencies Dependencies, options Options) (*Workflow, error) {
	if dependencies.Service == nil {
		return nil, ErrServiceNotConfigured
	}
	if options.ConflictRetryLimit < 0 {
		return nil, ErrNegativeRetryLimit
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	blobStore, blobStoreError := gitdata.NewBlobStore(logger, dependencies.Service)
	if blobStoreError != nil {
		return nil, blobStoreError
	}
	treeComposer, treeComposerError := gitdata.NewTreeComposer(logger, dependencies.Service)
	if treeComposerError != nil {
		return nil, treeComposerError
	}
	commitBuilder, commitBuilderError := gitdata.NewCommitBuilder(logger, dependencies.Service)
	if commitBuilderError != nil {
		return nil, commitBuilderError
	}
	branchManager, branchManagerError := gitdata.NewBranchManager(logger, dependencies.Service)
	if branchManagerError != nil {
		return nil, branchManagerError
	}

	return &Workflow{
		logger:   logger,
		blobs:    blobStore,
		trees:    treeComposer,
		commits:  commitBuilder,
		branches: branchManager,
		options:  options,
	}, nil
}

// Commit writes the requested files to the target branch as a single commit
// whose sole parent is the branch tip observed right before composing the
// tree. On failure the returned Result carries StateFailed and the objects
// produced so far; the branch is left where it was.
func (workflow *Workflow) Commit(executionContext context.Context, request Request) (Result, error) {
	if validationError := validateRequest(request); validationError != nil {
		return Result{State: StateFailed}, StepError{LastState: StateIdle, Cause: validationError}
	}

	run := &instance{
		workflow: workflow,
		request:  request,
		pending:  gitdata.NewPendingFileSet(),
		result:   Result{State: StateIdle},
		logger: workflow.logger.With(
			zap.String(logFieldRepositoryConstant, request.Repository.String()),
			zap.String(logFieldBranchConstant, request.TargetBranch),
		),
	}
	return run.execute(executionContext)
}

func validateRequest(request Request) error {
	if repositoryError := request.Repository.Validate(); repositoryError != nil {
		return repositoryError
	}
	if len(strings.TrimSpace(request.TargetBranch)) == 0 {
		return ErrTargetBranchRequired
	}
	if len(strings.TrimSpace(request.Message)) == 0 {
		return ErrMessageRequired
	}
	for _, file := range request.Files {
		if pathError := gitdata.ValidatePath(file.Path); pathError != nil {
			return pathError
		}
	}
	return nil
}

// instance is one run of the workflow. It owns its pending file set and is
// discarded once the run finishes.
type instance struct {
	workflow *Workflow
	request  Request
	pending  *gitdata.PendingFileSet
	result   Result
	logger   *zap.Logger
}

func (run *instance) execute(executionContext context.Context) (Result, error) {
	if ensureError := run.ensureBranch(executionContext); ensureError != nil {
		return run.fail(ensureError)
	}
	if stageError := run.stageFiles(executionContext); stageError != nil {
		return run.fail(stageError)
	}

	for attempt := 1; ; attempt++ {
		run.result.Attempts = attempt
		publishError := run.publish(executionContext)
		if publishError == nil {
			break
		}
		if !gitdata.IsConflict(publishError) || attempt > run.workflow.options.ConflictRetryLimit {
			return run.fail(publishError)
		}
		run.logger.Warn(
			workflowRetryMessageConstant,
			zap.Int(logFieldAttemptConstant, attempt),
			zap.String(logFieldParentConstant, run.result.Parent.String()),
			zap.Error(publishError),
		)
		run.result.State = StateFilesStaged
	}

	run.transition(StateDone)
	run.pending.Clear()
	run.logger.Info(
		workflowCompletedMessageConstant,
		zap.String(logFieldCommitConstant, run.result.Commit.String()),
		zap.String(logFieldParentConstant, run.result.Parent.String()),
		zap.Int(logFieldFileCountConstant, run.result.StagedFiles),
		zap.Int(logFieldAttemptConstant, run.result.Attempts),
		zap.String(logFieldBranchOutcomeConstant, string(run.result.Branch.Outcome)),
	)
	return run.result, nil
}

func (run *instance) ensureBranch(executionContext context.Context) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	baseBranch := strings.TrimSpace(run.request.BaseBranch)
	if len(baseBranch) == 0 {
		baseBranch = run.request.TargetBranch
	}

	creation, creationError := run.workflow.branches.CreateBranch(executionContext, run.request.Repository, baseBranch, run.request.TargetBranch)
	if creationError != nil {
		return creationError
	}
	run.result.Branch = creation
	run.transition(StateBranchEnsured)
	return nil
}

func (run *instance) stageFiles(executionContext context.Context) error {
	for _, file := range run.request.Files {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		blobHash, blobError := run.workflow.blobs.CreateBlob(executionContext, run.request.Repository, file.Content, file.Encoding)
		if blobError != nil {
			return blobError
		}
		run.pending.StageEntry(gitdata.TreeEntry{Path: file.Path, Mode: file.Mode, Hash: blobHash})
	}
	run.result.StagedFiles = run.pending.Len()
	run.transition(StateFilesStaged)
	return nil
}

// publish re-reads the branch tip, composes the tree over it, commits and
// advances the branch.
func (run *instance) publish(executionContext context.Context) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	tip, tipError := run.workflow.branches.CurrentCommit(executionContext, run.request.Repository, run.request.TargetBranch)
	if tipError != nil {
		return tipError
	}
	run.result.Parent = tip.Hash

	treeHash, treeError := run.workflow.trees.ComposeTree(executionContext, run.request.Repository, tip.Tree, run.pending.Entries())
	if treeError != nil {
		return treeError
	}
	run.result.Tree = treeHash
	run.transition(StateTreeComposed)

	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	commit, commitError := run.workflow.commits.CreateCommit(executionContext, run.request.Repository, run.request.Message, treeHash, []gitdata.Hash{tip.Hash})
	if commitError != nil {
		return commitError
	}
	run.result.Commit = commit.Hash
	run.transition(StateCommitCreated)

	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if _, updateError := run.workflow.branches.UpdateRef(executionContext, run.request.Repository, run.request.TargetBranch, commit.Hash); updateError != nil {
		return updateError
	}
	run.transition(StateRefUpdated)
	return nil
}

func (run *instance) transition(next State) {
	run.result.State = next
	run.logger.Debug(stateTransitionMessageConstant, zap.String(logFieldStateConstant, string(next)))
}

func (run *instance) fail(cause error) (Result, error) {
	lastState := run.result.State
	run.result.State = StateFailed
	run.logger.Warn(workflowFailedMessageConstant, zap.String(logFieldStateConstant, string(lastState)), zap.Error(cause))
	return run.result, StepError{LastState: lastState, Cause: cause}
}
