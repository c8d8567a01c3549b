package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gitfleet/internal/fleet"
	"github.com/temirov/gitfleet/internal/gitdata"
	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	clientRequiredMessageConstant    = "label client must be provided"
	listLabelsErrorTemplateConstant  = "unable to list labels: %w"
	createLabelErrorTemplateConstant = "unable to create label %q: %w"
	updateLabelErrorTemplateConstant = "unable to update label %q: %w"
	syncDetailTemplateConstant       = "created %d, updated %d, unchanged %d"
	dryRunDetailPrefixConstant       = "would have "
	labelsInSyncMessageConstant      = "labels already in sync"
	labelCreatedMessageConstant      = "created label"
	labelUpdatedMessageConstant      = "updated label"
	labelPlannedMessageConstant      = "label change planned"
	logFieldRepositoryConstant       = "repository"
	logFieldLabelConstant            = "label"
	logFieldActionConstant           = "action"
	actionCreateConstant             = "create"
	actionUpdateConstant             = "update"
)

var errClientRequired = errors.New(clientRequiredMessageConstant)

// Client is the subset of the GitHub API used for label maintenance.
type Client interface {
	ListLabels(executionContext context.Context, repository gitdata.RepositoryIdentifier) ([]githubapi.Label, error)
	CreateLabel(executionContext context.Context, repository gitdata.RepositoryIdentifier, label githubapi.Label) (githubapi.Label, error)
	UpdateLabel(executionContext context.Context, repository gitdata.RepositoryIdentifier, currentName string, label githubapi.Label) (githubapi.Label, error)
}

// SyncOptions configures one synchronization pass.
type SyncOptions struct {
	Labels []githubapi.Label
	DryRun bool
}

// SyncSummary lists label names by the action taken.
type SyncSummary struct {
	Created   []string
	Updated   []string
	Unchanged []string
}

// Changed reports whether any label was created or updated.
func (summary SyncSummary) Changed() bool {
	return len(summary.Created)+len(summary.Updated) > 0
}

func (summary SyncSummary) detail() string {
	return fmt.Sprintf(syncDetailTemplateConstant, len(summary.Created), len(summary.Updated), len(summary.Unchanged))
}

// Service synchronizes labels for individual repositories.
type Service struct {
	logger *zap.Logger
	client Client
}

// NewService constructs a Service.
func NewService(logger *zap.Logger, client Client) (*Service, error) {
	if client == nil {
		return nil, errClientRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, client: client}, nil
}

// Sync creates missing labels and rewrites existing ones whose color,
// description, or name casing differ. Existing labels match case-insensitively.
func (service *Service) Sync(executionContext context.Context, repository gitdata.RepositoryIdentifier, options SyncOptions) (SyncSummary, error) {
	existingLabels, listError := service.client.ListLabels(executionContext, repository)
	if listError != nil {
		return SyncSummary{}, fmt.Errorf(listLabelsErrorTemplateConstant, listError)
	}

	existingByName := make(map[string]githubapi.Label, len(existingLabels))
	for _, existing := range existingLabels {
		existingByName[strings.ToLower(existing.Name)] = existing
	}

	repositoryField := zap.String(logFieldRepositoryConstant, repository.String())
	summary := SyncSummary{}
	for _, desired := range options.Labels {
		existing, exists := existingByName[strings.ToLower(desired.Name)]
		switch {
		case !exists:
			if options.DryRun {
				service.logger.Info(labelPlannedMessageConstant, repositoryField, zap.String(logFieldLabelConstant, desired.Name), zap.String(logFieldActionConstant, actionCreateConstant))
			} else {
				if _, createError := service.client.CreateLabel(executionContext, repository, desired); createError != nil {
					return summary, fmt.Errorf(createLabelErrorTemplateConstant, desired.Name, createError)
				}
				service.logger.Info(labelCreatedMessageConstant, repositoryField, zap.String(logFieldLabelConstant, desired.Name))
			}
			summary.Created = append(summary.Created, desired.Name)
		case labelMatches(existing, desired):
			summary.Unchanged = append(summary.Unchanged, desired.Name)
		default:
			if options.DryRun {
				service.logger.Info(labelPlannedMessageConstant, repositoryField, zap.String(logFieldLabelConstant, desired.Name), zap.String(logFieldActionConstant, actionUpdateConstant))
			} else {
				if _, updateError := service.client.UpdateLabel(executionContext, repository, existing.Name, desired); updateError != nil {
					return summary, fmt.Errorf(updateLabelErrorTemplateConstant, existing.Name, updateError)
				}
				service.logger.Info(labelUpdatedMessageConstant, repositoryField, zap.String(logFieldLabelConstant, desired.Name))
			}
			summary.Updated = append(summary.Updated, desired.Name)
		}
	}
	return summary, nil
}

// Task adapts Sync to the fleet runner. Repositories already in sync are reported as skipped.
func (service *Service) Task(options SyncOptions) fleet.Task {
	return func(executionContext context.Context, repository githubapi.Repository) (string, error) {
		summary, syncError := service.Sync(executionContext, repository.Identifier, options)
		if syncError != nil {
			return "", syncError
		}
		if !summary.Changed() {
			return labelsInSyncMessageConstant, fleet.ErrRepositorySkipped
		}
		if options.DryRun {
			return dryRunDetailPrefixConstant + summary.detail(), nil
		}
		return summary.detail(), nil
	}
}

func labelMatches(existing githubapi.Label, desired githubapi.Label) bool {
	return existing.Name == desired.Name &&
		strings.EqualFold(existing.Color, desired.Color) &&
		existing.Description == desired.Description
}
