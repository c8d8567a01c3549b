package githubapi

import (
	"fmt"
	"strings"
)

const (
	ownerTypeUserConstant                OwnerType = "user"
	ownerTypeOrganizationConstant        OwnerType = "org"
	ownerTypeOrganizationAliasConstant             = "organization"
	userRepositoriesPathTemplate                   = "/users/%s/repos"
	organizationRepositoriesPathTemplate           = "/orgs/%s/repos"
	ownerTypeEmptyErrorMessageConstant             = "owner type must be provided"
	ownerTypeInvalidTemplateConstant               = "owner type %q is not supported"
)

// OwnerType selects whether repositories are listed for a user or an organization.
type OwnerType string

// Supported owner types.
const (
	UserOwnerType         OwnerType = ownerTypeUserConstant
	OrganizationOwnerType OwnerType = ownerTypeOrganizationConstant
)

// ParseOwnerType normalizes textual owner type values; "organization" is
// accepted as an alias of "org".
func ParseOwnerType(ownerTypeValue string) (OwnerType, error) {
	trimmedValue := strings.TrimSpace(ownerTypeValue)
	if len(trimmedValue) == 0 {
		return "", fmt.Errorf(ownerTypeEmptyErrorMessageConstant)
	}

	switch strings.ToLower(trimmedValue) {
	case string(UserOwnerType):
		return UserOwnerType, nil
	case string(OrganizationOwnerType), ownerTypeOrganizationAliasConstant:
		return OrganizationOwnerType, nil
	default:
		return "", fmt.Errorf(ownerTypeInvalidTemplateConstant, ownerTypeValue)
	}
}

// repositoriesPath resolves the listing endpoint for the owner.
func (ownerType OwnerType) repositoriesPath(owner string) string {
	if ownerType == OrganizationOwnerType {
		return fmt.Sprintf(organizationRepositoriesPathTemplate, escapePathSegments(owner))
	}
	return fmt.Sprintf(userRepositoriesPathTemplate, escapePathSegments(owner))
}
