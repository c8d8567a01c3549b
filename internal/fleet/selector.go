package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	defaultActivityConcurrencyConstant       = 4
	ownerRequiredMessageConstant             = "repository owner must be provided"
	sourceRequiredMessageConstant            = "repository source must be provided"
	missingRelevantErrorTemplateConstant     = "relevant repositories not found under %s: %s"
	listRepositoriesErrorTemplateConstant    = "unable to list repositories for %s: %w"
	activityLookupErrorTemplateConstant      = "unable to determine latest activity for %s: %w"
	selectionCompletedMessageConstant        = "selected repositories"
	relevantRepositoryMissingMessageConstant = "relevant repository not found; skipping"
	inactiveRepositoryDroppedMessageConstant = "repository has no recorded activity; dropping from activity order"
	logFieldOwnerConstant                    = "owner"
	logFieldSelectedCountConstant            = "selected_count"
	logFieldListedCountConstant              = "listed_count"
)

var (
	errOwnerRequired  = errors.New(ownerRequiredMessageConstant)
	errSourceRequired = errors.New(sourceRequiredMessageConstant)
)

// RepositorySource lists repositories and their activity.
type RepositorySource interface {
	ListRepositories(executionContext context.Context, ownerType githubapi.OwnerType, owner string) ([]githubapi.Repository, error)
	LatestActivity(executionContext context.Context, repository gitdata.RepositoryIdentifier) (time.Time, bool, error)
}

// SelectionOptions narrows the repositories a fleet operation visits.
type SelectionOptions struct {
	OwnerType            githubapi.OwnerType
	Owner                string
	RelevantRepositories []string
	RequireRelevant      bool
	IncludeArchived      bool
	SortByActivity       bool
	ActivityConcurrency  int
}

// MissingRelevantRepositoriesError lists relevant repositories absent from the owner's listing.
type MissingRelevantRepositoriesError struct {
	Owner   string
	Missing []string
}

// Error describes the missing repositories.
func (missingError MissingRelevantRepositoriesError) Error() string {
	return fmt.Sprintf(missingRelevantErrorTemplateConstant, missingError.Owner, strings.Join(missingError.Missing, ", "))
}

// Selector resolves the repository set for a fleet operation.
type Selector struct {
	logger *zap.Logger
	source RepositorySource
}

// NewSelector constructs a Selector over the provided source.
func NewSelector(logger *zap.Logger, source RepositorySource) (*Selector, error) {
	if source == nil {
		return nil, errSourceRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{logger: logger, source: source}, nil
}

// Select lists the owner's repositories and applies the relevant-name filter,
// the archive filter, and the optional oldest-activity-first ordering.
func (selector *Selector) Select(executionContext context.Context, options SelectionOptions) ([]githubapi.Repository, error) {
	owner := strings.TrimSpace(options.Owner)
	if len(owner) == 0 {
		return nil, errOwnerRequired
	}

	listed, listError := selector.source.ListRepositories(executionContext, options.OwnerType, owner)
	if listError != nil {
		return nil, fmt.Errorf(listRepositoriesErrorTemplateConstant, owner, listError)
	}

	selected, filterError := selector.filterRelevant(owner, listed, options)
	if filterError != nil {
		return nil, filterError
	}

	if !options.IncludeArchived {
		selected = withoutArchived(selected)
	}

	if options.SortByActivity {
		ordered, orderError := selector.orderByActivity(executionContext, selected, options.ActivityConcurrency)
		if orderError != nil {
			return nil, orderError
		}
		selected = ordered
	}

	selector.logger.Info(
		selectionCompletedMessageConstant,
		zap.String(logFieldOwnerConstant, owner),
		zap.Int(logFieldListedCountConstant, len(listed)),
		zap.Int(logFieldSelectedCountConstant, len(selected)),
	)
	return selected, nil
}

func (selector *Selector) filterRelevant(owner string, listed []githubapi.Repository, options SelectionOptions) ([]githubapi.Repository, error) {
	relevantNames := sanitizeNames(options.RelevantRepositories)
	if len(relevantNames) == 0 {
		return listed, nil
	}

	byName := make(map[string]githubapi.Repository, len(listed))
	for _, repository := range listed {
		byName[strings.ToLower(repository.Identifier.Name)] = repository
	}

	selected := make([]githubapi.Repository, 0, len(relevantNames))
	missing := make([]string, 0)
	for _, name := range relevantNames {
		repository, exists := byName[strings.ToLower(name)]
		if !exists {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, repository)
	}

	if len(missing) > 0 {
		if options.RequireRelevant {
			return nil, MissingRelevantRepositoriesError{Owner: owner, Missing: missing}
		}
		for _, name := range missing {
			selector.logger.Warn(relevantRepositoryMissingMessageConstant, zap.String(logFieldOwnerConstant, owner), zap.String(logFieldRepositoryConstant, name))
		}
	}
	return selected, nil
}

type activityRecord struct {
	latest time.Time
	found  bool
}

func (selector *Selector) orderByActivity(executionContext context.Context, repositories []githubapi.Repository, concurrency int) ([]githubapi.Repository, error) {
	if concurrency <= 0 {
		concurrency = defaultActivityConcurrencyConstant
	}

	records := make([]activityRecord, len(repositories))
	lookupPool := pool.New().WithMaxGoroutines(concurrency).WithContext(executionContext).WithCancelOnError().WithFirstError()
	for index := range repositories {
		lookupPool.Go(func(poolContext context.Context) error {
			identifier := repositories[index].Identifier
			latest, found, lookupError := selector.source.LatestActivity(poolContext, identifier)
			if lookupError != nil {
				return fmt.Errorf(activityLookupErrorTemplateConstant, identifier.String(), lookupError)
			}
			records[index] = activityRecord{latest: latest, found: found}
			return nil
		})
	}
	if waitError := lookupPool.Wait(); waitError != nil {
		return nil, waitError
	}

	type activeRepository struct {
		repository githubapi.Repository
		latest     time.Time
	}
	active := make([]activeRepository, 0, len(repositories))
	for index, repository := range repositories {
		if !records[index].found {
			selector.logger.Debug(inactiveRepositoryDroppedMessageConstant, zap.String(logFieldRepositoryConstant, repository.Identifier.String()))
			continue
		}
		active = append(active, activeRepository{repository: repository, latest: records[index].latest})
	}

	sort.SliceStable(active, func(left int, right int) bool {
		return active[left].latest.Before(active[right].latest)
	})

	ordered := make([]githubapi.Repository, 0, len(active))
	for _, entry := range active {
		ordered = append(ordered, entry.repository)
	}
	return ordered, nil
}

func withoutArchived(repositories []githubapi.Repository) []githubapi.Repository {
	filtered := make([]githubapi.Repository, 0, len(repositories))
	for _, repository := range repositories {
		if repository.Archived {
			continue
		}
		filtered = append(filtered, repository)
	}
	return filtered
}

func sanitizeNames(rawNames []string) []string {
	sanitized := make([]string, 0, len(rawNames))
	seen := make(map[string]struct{}, len(rawNames))
	for _, candidate := range rawNames {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
