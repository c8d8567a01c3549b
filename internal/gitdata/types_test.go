package gitdata_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitfleet/internal/gitdata"
)

const validHashConstant = "0123456789abcdef0123456789abcdef01234567"

func TestParseRepositoryIdentifier(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expected      gitdata.RepositoryIdentifier
		expectedField string
	}{
		{name: "OwnerAndName", input: "octo/widgets", expected: gitdata.RepositoryIdentifier{Owner: "octo", Name: "widgets"}},
		{name: "TrimsWhitespace", input: "  octo / widgets ", expected: gitdata.RepositoryIdentifier{Owner: "octo", Name: "widgets"}},
		{name: "MissingSeparator", input: "widgets", expectedField: "repository_identifier"},
		{name: "TooManySegments", input: "octo/widgets/extra", expectedField: "repository_identifier"},
		{name: "MissingOwner", input: "/widgets", expectedField: "owner"},
		{name: "MissingName", input: "octo/", expectedField: "repository"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			identifier, parseError := gitdata.ParseRepositoryIdentifier(testCase.input)
			if len(testCase.expectedField) > 0 {
				var inputError gitdata.InvalidInputError
				require.True(t, errors.As(parseError, &inputError))
				require.Equal(t, testCase.expectedField, inputError.FieldName)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expected, identifier)
			require.Equal(t, "octo/widgets", identifier.String())
		})
	}
}

func TestValidatePath(t *testing.T) {
	testCases := []struct {
		name  string
		path  string
		valid bool
	}{
		{name: "TopLevelFile", path: "a.txt", valid: true},
		{name: "NestedFile", path: ".github/ISSUE_TEMPLATE.md", valid: true},
		{name: "Empty", path: "", valid: false},
		{name: "Absolute", path: "/etc/passwd", valid: false},
		{name: "TrailingSeparator", path: "docs/", valid: false},
		{name: "ParentSegment", path: "docs/../secrets", valid: false},
		{name: "CurrentSegment", path: "./a.txt", valid: false},
		{name: "DoubleSeparator", path: "docs//a.txt", valid: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			validationError := gitdata.ValidatePath(testCase.path)
			if testCase.valid {
				require.NoError(t, validationError)
				return
			}
			require.Error(t, validationError)
		})
	}
}

func TestValidateBranchName(t *testing.T) {
	require.NoError(t, gitdata.ValidateBranchName("feature/labels"))
	require.Error(t, gitdata.ValidateBranchName(""))
	require.Error(t, gitdata.ValidateBranchName("has space"))
	require.Error(t, gitdata.ValidateBranchName("refs/heads/main"))
	require.Equal(t, "refs/heads/main", gitdata.BranchReferenceName("main"))
}

func TestTreeEntryModesUseOctalSpelling(t *testing.T) {
	require.Equal(t, gitdata.TreeEntryMode("100644"), gitdata.TreeEntryModeFile)
	require.Equal(t, gitdata.TreeEntryMode("100755"), gitdata.TreeEntryModeExecutable)
	require.Equal(t, gitdata.TreeEntryMode("040000"), gitdata.TreeEntryModeSubdirectory)
	require.Equal(t, gitdata.TreeEntryMode("160000"), gitdata.TreeEntryModeSubmodule)
	require.Equal(t, gitdata.TreeEntryMode("120000"), gitdata.TreeEntryModeSymlink)
}

func TestHashValidate(t *testing.T) {
	require.NoError(t, gitdata.Hash(validHashConstant).Validate("commit"))
	require.Error(t, gitdata.Hash("").Validate("commit"))
	require.Error(t, gitdata.Hash("not-a-hash").Validate("commit"))
}

func TestTreeLookupReturnsLastEntry(t *testing.T) {
	tree := gitdata.Tree{Entries: []gitdata.TreeEntry{
		{Path: "x.txt", Hash: "first"},
		{Path: "y.txt", Hash: "other"},
		{Path: "x.txt", Hash: "second"},
	}}

	entry, found := tree.Lookup("x.txt")
	require.True(t, found)
	require.Equal(t, gitdata.Hash("second"), entry.Hash)

	_, found = tree.Lookup("missing.txt")
	require.False(t, found)
}

func TestOperationErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	operationError := gitdata.NewOperationError(gitdata.OperationUpdateRef, gitdata.ErrConflict, cause)

	require.ErrorIs(t, operationError, gitdata.ErrConflict)
	require.ErrorIs(t, operationError, cause)
	require.NotErrorIs(t, operationError, gitdata.ErrNotFound)
	require.True(t, gitdata.IsConflict(operationError))
	require.Equal(t, gitdata.ErrConflict, gitdata.KindOf(operationError))
	require.Equal(t, "UpdateRef failed (conflict): boom", operationError.Error())

	unclassified := gitdata.NewOperationError(gitdata.OperationGetBlob, nil, nil)
	require.ErrorIs(t, unclassified, gitdata.ErrRemoteFailure)
	require.Equal(t, gitdata.ErrRemoteFailure, gitdata.KindOf(cause))
	require.Nil(t, gitdata.KindOf(nil))
}
