package shared

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ownerRepositorySeparatorConstant        = "/"
	ownerSlugInvalidCharactersConstant      = "/ \t\r\n"
	repositoryNameInvalidCharactersConstant = "/ \t\r\n"
	emptyOwnerSlugMessageConstant           = "owner slug must not be empty"
	emptyRepositoryNameMessageConstant      = "repository name must not be empty"
	invalidOwnerSlugTemplateConstant        = "owner slug %q contains invalid characters"
	invalidRepositoryNameTemplateConstant   = "repository name %q contains invalid characters"
	invalidIdentityTemplateConstant         = "repository identity %q must be in owner/name form"
)

var (
	// ErrEmptyOwnerSlug indicates a blank owner.
	ErrEmptyOwnerSlug = errors.New(emptyOwnerSlugMessageConstant)
	// ErrEmptyRepositoryName indicates a blank repository name.
	ErrEmptyRepositoryName = errors.New(emptyRepositoryNameMessageConstant)
)

// OwnerSlug is a GitHub organization or user login.
type OwnerSlug string

// NewOwnerSlug trims and validates an owner login.
func NewOwnerSlug(raw string) (OwnerSlug, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", ErrEmptyOwnerSlug
	}
	if strings.ContainsAny(trimmed, ownerSlugInvalidCharactersConstant) {
		return "", fmt.Errorf(invalidOwnerSlugTemplateConstant, trimmed)
	}
	return OwnerSlug(trimmed), nil
}

// String returns the owner login.
func (slug OwnerSlug) String() string {
	return string(slug)
}

// RepositoryIdentity names a repository within its owner.
type RepositoryIdentity struct {
	Owner OwnerSlug
	Name  string
}

// NewRepositoryIdentity validates owner and name.
func NewRepositoryIdentity(owner string, name string) (RepositoryIdentity, error) {
	ownerSlug, ownerError := NewOwnerSlug(owner)
	if ownerError != nil {
		return RepositoryIdentity{}, ownerError
	}
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return RepositoryIdentity{}, ErrEmptyRepositoryName
	}
	if strings.ContainsAny(trimmedName, repositoryNameInvalidCharactersConstant) {
		return RepositoryIdentity{}, fmt.Errorf(invalidRepositoryNameTemplateConstant, trimmedName)
	}
	return RepositoryIdentity{Owner: ownerSlug, Name: trimmedName}, nil
}

// ParseRepositoryIdentity parses an owner/name pair.
func ParseRepositoryIdentity(nameWithOwner string) (RepositoryIdentity, error) {
	parts := strings.Split(strings.TrimSpace(nameWithOwner), ownerRepositorySeparatorConstant)
	if len(parts) != 2 {
		return RepositoryIdentity{}, fmt.Errorf(invalidIdentityTemplateConstant, nameWithOwner)
	}
	return NewRepositoryIdentity(parts[0], parts[1])
}

// String renders the identity as owner/name.
func (identity RepositoryIdentity) String() string {
	return identity.Owner.String() + ownerRepositorySeparatorConstant + identity.Name
}

// MatchesName reports whether name refers to this repository. GitHub repository names are case-insensitive.
func (identity RepositoryIdentity) MatchesName(name string) bool {
	return strings.EqualFold(identity.Name, strings.TrimSpace(name))
}
