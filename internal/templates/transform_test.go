package templates_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitfleet/internal/templates"
)

const (
	legacyIssueTemplate = "**Labels**\n\n- [ ] has-reproduction\n- [ ] feature\n- [ ] blocking\n- [ ] good first issue\n"
	legacyPullTemplate  = "**Labels**\n\n- [ ] has-reproduction\n- [ ] feature\n- [ ] blocking\n- [ ] good first review\n"
)

func TestTransformIssueTemplate(t *testing.T) {
	testCases := []struct {
		name            string
		content         string
		expectedContent string
		expectedChanged bool
		expectedError   error
	}{
		{
			name:            "inserts docs before blocking",
			content:         legacyIssueTemplate,
			expectedContent: "**Labels**\n\n- [ ] has-reproduction\n- [ ] feature\n- [ ] docs\n- [ ] blocking\n- [ ] good first issue\n",
			expectedChanged: true,
		},
		{
			name:            "already offers docs",
			content:         templates.DefaultIssueTemplate,
			expectedContent: templates.DefaultIssueTemplate,
		},
		{
			name:          "missing blocking marker",
			content:       "- [ ] feature\n",
			expectedError: templates.ErrIssueMarkerMissing,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			transformed, changed, transformError := templates.TransformIssueTemplate(testCase.content)
			if testCase.expectedError != nil {
				require.ErrorIs(t, transformError, testCase.expectedError)
				return
			}
			require.NoError(t, transformError)
			require.Equal(t, testCase.expectedChanged, changed)
			require.Equal(t, testCase.expectedContent, transformed)
		})
	}
}

func TestTransformPullRequestTemplate(t *testing.T) {
	testCases := []struct {
		name            string
		content         string
		expectedContent string
		expectedChanged bool
		expectedError   error
	}{
		{
			name:            "drops reproduction and renames review",
			content:         legacyPullTemplate,
			expectedContent: "**Labels**\n\n- [ ] feature\n- [ ] blocking\n- [ ] docs\n",
			expectedChanged: true,
		},
		{
			name:            "already converted",
			content:         templates.DefaultPullRequestTemplate,
			expectedContent: templates.DefaultPullRequestTemplate,
		},
		{
			name:          "missing reproduction marker",
			content:       "- [ ] feature\n- [ ] good first review\n",
			expectedError: templates.ErrReproductionMarkerMissing,
		},
		{
			name:          "duplicated reproduction marker",
			content:       "- [ ] has-reproduction\n- [ ] has-reproduction\n- [ ] good first review\n",
			expectedError: templates.ErrReproductionMarkerMissing,
		},
		{
			name:          "missing review marker",
			content:       "- [ ] has-reproduction\n- [ ] feature\n",
			expectedError: templates.ErrReviewMarkerMissing,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			transformed, changed, transformError := templates.TransformPullRequestTemplate(testCase.content)
			if testCase.expectedError != nil {
				require.ErrorIs(t, transformError, testCase.expectedError)
				return
			}
			require.NoError(t, transformError)
			require.Equal(t, testCase.expectedChanged, changed)
			require.Equal(t, testCase.expectedContent, transformed)
		})
	}
}
