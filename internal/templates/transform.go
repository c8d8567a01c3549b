package templates

import (
	"errors"
	"strings"
)

const (
	docsCheckboxConstant               = "- [ ] docs"
	blockingCheckboxConstant           = "- [ ] blocking"
	hasReproductionCheckboxConstant    = "- [ ] has-reproduction\n"
	goodFirstReviewCheckboxConstant    = "- [ ] good first review"
	issueMarkerMissingMessageConstant  = "unable to find blocking checkbox in issue template"
	reproductionMissingMessageConstant = "unable to find has-reproduction checkbox in pull request template"
	reviewMissingMessageConstant       = "unable to find good first review checkbox in pull request template"
)

var (
	// ErrIssueMarkerMissing indicates the issue template lacks the blocking checkbox.
	ErrIssueMarkerMissing = errors.New(issueMarkerMissingMessageConstant)
	// ErrReproductionMarkerMissing indicates the pull request template lacks exactly one has-reproduction checkbox.
	ErrReproductionMarkerMissing = errors.New(reproductionMissingMessageConstant)
	// ErrReviewMarkerMissing indicates the pull request template lacks exactly one good first review checkbox.
	ErrReviewMarkerMissing = errors.New(reviewMissingMessageConstant)
)

// DefaultIssueTemplate is written when a repository has no issue template.
const DefaultIssueTemplate = `<!--**Issue Labels**

While not necessary, you can help organize our issues by labeling this when you open it.  To add a label automatically, simply [x] mark the appropriate box below:

- [ ] has-reproduction
- [ ] feature
- [ ] docs
- [ ] blocking
- [ ] good first issue

To add a label not listed above, simply place ` + "`/label another-label-name`" + ` on a line by itself.
-->`

// DefaultPullRequestTemplate is written when a repository has no pull request template.
const DefaultPullRequestTemplate = `<!--**Pull Request Labels**

While not necessary, you can help organize our pull requests by labeling this when you open it.  To add a label automatically, simply [x] mark the appropriate box below:

- [ ] feature
- [ ] blocking
- [ ] docs

To add a label not listed above, simply place ` + "`/label another-label-name`" + ` on a line by itself.
-->`

// TransformIssueTemplate inserts the docs checkbox before the first blocking
// checkbox. Templates that already offer docs are returned unchanged.
func TransformIssueTemplate(content string) (string, bool, error) {
	if strings.Contains(content, docsCheckboxConstant) {
		return content, false, nil
	}
	markerIndex := strings.Index(content, blockingCheckboxConstant)
	if markerIndex < 0 {
		return "", false, ErrIssueMarkerMissing
	}
	return content[:markerIndex] + docsCheckboxConstant + "\n" + content[markerIndex:], true, nil
}

// TransformPullRequestTemplate drops the has-reproduction checkbox and turns
// the good first review checkbox into docs. Each marker must occur exactly once.
// Templates that already offer docs without either marker are returned unchanged.
func TransformPullRequestTemplate(content string) (string, bool, error) {
	if strings.Contains(content, docsCheckboxConstant) &&
		!strings.Contains(content, hasReproductionCheckboxConstant) &&
		!strings.Contains(content, goodFirstReviewCheckboxConstant) {
		return content, false, nil
	}

	reproductionParts := strings.Split(content, hasReproductionCheckboxConstant)
	if len(reproductionParts) != 2 {
		return "", false, ErrReproductionMarkerMissing
	}
	reviewParts := strings.Split(reproductionParts[1], goodFirstReviewCheckboxConstant)
	if len(reviewParts) != 2 {
		return "", false, ErrReviewMarkerMissing
	}
	return reproductionParts[0] + reviewParts[0] + docsCheckboxConstant + reviewParts[1], true, nil
}
