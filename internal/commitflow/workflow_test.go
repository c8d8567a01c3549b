package commitflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitfleet/internal/commitflow"
	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/gitdata/gitdatatest"
)

const (
	baseBranchName   = "main"
	targetBranchName = "gitfleet-bot/templates"
	commitMessage    = "Update templates"
)

var testRepository = gitdata.RepositoryIdentifier{Owner: "octo", Name: "widgets"}

func newSeededService(t *testing.T) (*gitdatatest.Service, gitdata.Hash) {
	t.Helper()
	service := gitdatatest.NewService()
	seedCommit := service.Seed(testRepository, baseBranchName, map[string]string{"README.md": "readme"})
	return service, seedCommit
}

func newWorkflow(t *testing.T, service gitdata.ObjectService, options commitflow.Options) *commitflow.Workflow {
	t.Helper()
	workflow, workflowError := commitflow.NewWorkflow(commitflow.Dependencies{Logger: zap.NewNop(), Service: service}, options)
	require.NoError(t, workflowError)
	return workflow
}

// advanceOnFirstUpdate moves the target branch right before the first UpdateRef
// call, emulating another actor pushing between tip read and ref update.
func advanceOnFirstUpdate(t *testing.T, service *gitdatatest.Service, branch string) *gitdata.Hash {
	t.Helper()
	var otherCommit gitdata.Hash
	triggered := false
	service.SetHook(func(operation gitdata.OperationName, repository gitdata.RepositoryIdentifier) error {
		if operation != gitdata.OperationUpdateRef || triggered {
			return nil
		}
		triggered = true
		advancedCommit, advanceError := service.AdvanceBranch(repository, branch, "concurrent change", map[string]string{"other.txt": "theirs"})
		require.NoError(t, advanceError)
		otherCommit = advancedCommit
		return nil
	})
	return &otherCommit
}

func TestNewWorkflowValidatesDependencies(t *testing.T) {
	testCases := []struct {
		name         string
		dependencies commitflow.Dependencies
		options      commitflow.Options
		expectedErr  error
	}{
		{name: "MissingService", dependencies: commitflow.Dependencies{}, expectedErr: commitflow.ErrServiceNotConfigured},
		{name: "NegativeRetryLimit", dependencies: commitflow.Dependencies{Service: gitdatatest.NewService()}, options: commitflow.Options{ConflictRetryLimit: -1}, expectedErr: commitflow.ErrNegativeRetryLimit},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			workflow, creationError := commitflow.NewWorkflow(testCase.dependencies, testCase.options)
			require.ErrorIs(t, creationError, testCase.expectedErr)
			require.Nil(t, workflow)
		})
	}
}

func TestCommitWritesFilesOnNewBranch(t *testing.T) {
	service, seedCommit := newSeededService(t)
	core, logs := observer.New(zap.InfoLevel)
	workflow, workflowError := commitflow.NewWorkflow(commitflow.Dependencies{Logger: zap.New(core), Service: service}, commitflow.Options{})
	require.NoError(t, workflowError)

	result, commitError := workflow.Commit(context.Background(), commitflow.Request{
		Repository:   testRepository,
		BaseBranch:   baseBranchName,
		TargetBranch: targetBranchName,
		Message:      commitMessage,
		Files: []commitflow.FileChange{
			{Path: "a.txt", Content: "alpha"},
			{Path: "docs/b.txt", Content: "beta"},
		},
	})
	require.NoError(t, commitError)
	require.Equal(t, commitflow.StateDone, result.State)
	require.Equal(t, gitdata.BranchCreated, result.Branch.Outcome)
	require.Equal(t, seedCommit, result.Parent)
	require.Equal(t, 2, result.StagedFiles)
	require.Equal(t, 1, result.Attempts)

	tip, exists := service.BranchTip(testRepository, targetBranchName)
	require.True(t, exists)
	require.Equal(t, result.Commit, tip)

	commit, found := service.CommitObject(testRepository, result.Commit)
	require.True(t, found)
	require.Equal(t, []gitdata.Hash{seedCommit}, commit.Parents)
	require.Equal(t, result.Tree, commit.Tree)
	require.Equal(t, commitMessage, commit.Message)
	require.Equal(t, map[string]string{"README.md": "readme", "a.txt": "alpha", "docs/b.txt": "beta"}, service.Files(testRepository, result.Commit))

	baseTip, _ := service.BranchTip(testRepository, baseBranchName)
	require.Equal(t, seedCommit, baseTip)
	require.Equal(t, 1, logs.FilterMessage("committed files to branch").Len())
}

func TestCommitKeepsLastStagedContentForDuplicatePaths(t *testing.T) {
	service, _ := newSeededService(t)
	workflow := newWorkflow(t, service, commitflow.Options{})

	result, commitError := workflow.Commit(context.Background(), commitflow.Request{
		Repository:   testRepository,
		TargetBranch: baseBranchName,
		Message:      commitMessage,
		Files: []commitflow.FileChange{
			{Path: "x.txt", Content: "v1"},
			{Path: "x.txt", Content: "v2"},
		},
	})
	require.NoError(t, commitError)
	require.Equal(t, gitdata.BranchAlreadyExisted, result.Branch.Outcome)
	require.Equal(t, "v2", service.Files(testRepository, result.Commit)["x.txt"])
}

func TestCommitFailsWithConflictWhenBranchMoves(t *testing.T) {
	service, _ := newSeededService(t)
	workflow := newWorkflow(t, service, commitflow.Options{})
	otherCommit := advanceOnFirstUpdate(t, service, targetBranchName)

	result, commitError := workflow.Commit(context.Background(), commitflow.Request{
		Repository:   testRepository,
		BaseBranch:   baseBranchName,
		TargetBranch: targetBranchName,
		Message:      commitMessage,
		Files:        []commitflow.FileChange{{Path: "a.txt", Content: "alpha"}},
	})
	require.ErrorIs(t, commitError, gitdata.ErrConflict)

	var stepError commitflow.StepError
	require.True(t, errors.As(commitError, &stepError))
	require.Equal(t, commitflow.StateCommitCreated, stepError.LastState)
	require.Equal(t, commitflow.StateFailed, result.State)
	require.Equal(t, 1, result.Attempts)

	tip, _ := service.BranchTip(testRepository, targetBranchName)
	require.Equal(t, *otherCommit, tip)
	require.NotEqual(t, result.Commit, tip)
}

func TestCommitRetriesOnConflictWhenEnabled(t *testing.T) {
	service, _ := newSeededService(t)
	workflow := newWorkflow(t, service, commitflow.Options{ConflictRetryLimit: 1})
	otherCommit := advanceOnFirstUpdate(t, service, targetBranchName)

	result, commitError := workflow.Commit(context.Background(), commitflow.Request{
		Repository:   testRepository,
		BaseBranch:   baseBranchName,
		TargetBranch: targetBranchName,
		Message:      commitMessage,
		Files:        []commitflow.FileChange{{Path: "a.txt", Content: "alpha"}},
	})
	require.NoError(t, commitError)
	require.Equal(t, commitflow.StateDone, result.State)
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, *otherCommit, result.Parent)
	require.Equal(t, 1, service.CallCount(gitdata.OperationCreateBlob))
	require.Equal(t, map[string]string{"README.md": "readme", "a.txt": "alpha", "other.txt": "theirs"}, service.Files(testRepository, result.Commit))

	tip, _ := service.BranchTip(testRepository, targetBranchName)
	require.Equal(t, result.Commit, tip)
}

func TestCommitLeavesBranchUntouchedOnFailure(t *testing.T) {
	remoteError := gitdata.NewOperationError(gitdata.OperationCreateCommit, gitdata.ErrRemoteFailure, errors.New("rate limited"))
	testCases := []struct {
		name              string
		failingOperation  gitdata.OperationName
		expectedLastState commitflow.State
		expectedAttempts  int
	}{
		{name: "BlobFailure", failingOperation: gitdata.OperationCreateBlob, expectedLastState: commitflow.StateBranchEnsured},
		{name: "TreeFailure", failingOperation: gitdata.OperationCreateTree, expectedLastState: commitflow.StateFilesStaged, expectedAttempts: 1},
		{name: "CommitFailure", failingOperation: gitdata.OperationCreateCommit, expectedLastState: commitflow.StateTreeComposed, expectedAttempts: 1},
		{name: "UpdateFailure", failingOperation: gitdata.OperationUpdateRef, expectedLastState: commitflow.StateCommitCreated, expectedAttempts: 1},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			service, seedCommit := newSeededService(t)
			workflow := newWorkflow(t, service, commitflow.Options{ConflictRetryLimit: 3})
			service.SetHook(func(operation gitdata.OperationName, _ gitdata.RepositoryIdentifier) error {
				if operation == testCase.failingOperation {
					return remoteError
				}
				return nil
			})

			result, commitError := workflow.Commit(context.Background(), commitflow.Request{
				Repository:   testRepository,
				TargetBranch: baseBranchName,
				Message:      commitMessage,
				Files:        []commitflow.FileChange{{Path: "a.txt", Content: "alpha"}},
			})
			require.ErrorIs(t, commitError, gitdata.ErrRemoteFailure)
			require.Equal(t, commitflow.StateFailed, result.State)
			require.Equal(t, testCase.expectedAttempts, result.Attempts)

			var stepError commitflow.StepError
			require.True(t, errors.As(commitError, &stepError))
			require.Equal(t, testCase.expectedLastState, stepError.LastState)

			tip, _ := service.BranchTip(testRepository, baseBranchName)
			require.Equal(t, seedCommit, tip)
		})
	}
}

func TestCommitValidatesRequestBeforeRemoteCalls(t *testing.T) {
	testCases := []struct {
		name        string
		request     commitflow.Request
		expectedErr error
	}{
		{
			name:        "MissingTargetBranch",
			request:     commitflow.Request{Repository: testRepository, Message: commitMessage},
			expectedErr: commitflow.ErrTargetBranchRequired,
		},
		{
			name:        "MissingMessage",
			request:     commitflow.Request{Repository: testRepository, TargetBranch: baseBranchName, Message: " "},
			expectedErr: commitflow.ErrMessageRequired,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			service, _ := newSeededService(t)
			workflow := newWorkflow(t, service, commitflow.Options{})

			result, commitError := workflow.Commit(context.Background(), testCase.request)
			require.ErrorIs(t, commitError, testCase.expectedErr)
			require.Equal(t, commitflow.StateFailed, result.State)
			require.Empty(t, service.Calls())
		})
	}

	service, _ := newSeededService(t)
	workflow := newWorkflow(t, service, commitflow.Options{})
	_, pathError := workflow.Commit(context.Background(), commitflow.Request{
		Repository:   testRepository,
		TargetBranch: baseBranchName,
		Message:      commitMessage,
		Files:        []commitflow.FileChange{{Path: "../escape.txt", Content: "x"}},
	})
	var inputError gitdata.InvalidInputError
	require.True(t, errors.As(pathError, &inputError))
	require.Empty(t, service.Calls())
}

func TestCommitHonoursCancellation(t *testing.T) {
	service, seedCommit := newSeededService(t)
	workflow := newWorkflow(t, service, commitflow.Options{})
	executionContext, cancel := context.WithCancel(context.Background())
	service.SetHook(func(operation gitdata.OperationName, _ gitdata.RepositoryIdentifier) error {
		if operation == gitdata.OperationCreateBlob {
			cancel()
		}
		return nil
	})

	result, commitError := workflow.Commit(executionContext, commitflow.Request{
		Repository:   testRepository,
		TargetBranch: baseBranchName,
		Message:      commitMessage,
		Files: []commitflow.FileChange{
			{Path: "a.txt", Content: "alpha"},
			{Path: "b.txt", Content: "beta"},
		},
	})
	require.ErrorIs(t, commitError, context.Canceled)
	require.Equal(t, commitflow.StateFailed, result.State)
	require.Equal(t, 1, service.CallCount(gitdata.OperationCreateBlob))
	require.Zero(t, service.CallCount(gitdata.OperationCreateTree))

	tip, _ := service.BranchTip(testRepository, baseBranchName)
	require.Equal(t, seedCommit, tip)
}

func TestCommitWithoutFilesReusesTipTree(t *testing.T) {
	service, seedCommit := newSeededService(t)
	workflow := newWorkflow(t, service, commitflow.Options{})

	result, commitError := workflow.Commit(context.Background(), commitflow.Request{
		Repository:   testRepository,
		TargetBranch: baseBranchName,
		Message:      commitMessage,
	})
	require.NoError(t, commitError)
	seed, _ := service.CommitObject(testRepository, seedCommit)
	require.Equal(t, seed.Tree, result.Tree)
	require.Zero(t, service.CallCount(gitdata.OperationCreateTree))
}
