package orgsync

import (
	"context"

	"github.com/temirov/depbot/internal/githubcli"
)

// RepositoryHost is the subset of the GitHub client used by a sync run.
type RepositoryHost interface {
	ListOrganizationRepositories(executionContext context.Context, organization string, limit int) ([]githubcli.OrganizationRepository, error)
	ListCustomProperties(executionContext context.Context, repository string) ([]githubcli.CustomPropertyValue, error)
	ListTree(executionContext context.Context, repository string, reference string) (githubcli.TreeSnapshot, error)
	GetFileContent(executionContext context.Context, repository string, path string, reference string) (githubcli.FileContent, error)
	PutFileContent(executionContext context.Context, repository string, write githubcli.FileWrite) error
	GetBranchHead(executionContext context.Context, repository string, branch string) (string, error)
	CreateBranch(executionContext context.Context, repository string, branch string, commitSHA string) error
	FindOpenPullRequest(executionContext context.Context, repository string, branch string) (githubcli.PullRequest, bool, error)
	CreatePullRequest(executionContext context.Context, repository string, request githubcli.PullRequestRequest) (string, error)
}
