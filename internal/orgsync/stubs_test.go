package orgsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/dependabot"
	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/githubcli"
	"github.com/temirov/depbot/internal/overrides"
	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	testOrganizationConstant  = "octo-org"
	testDefaultBranchConstant = "main"
	testUpdateBranchConstant  = "depbot/update-dependabot"
	testPushedAtConstant      = "2026-10-01T12:00:00Z"
	testHeadSHAConstant       = "head-sha"
	testExistingSHAConstant   = "existing-sha"
	testPullRequestURL        = "https://github.com/octo-org/widgets/pull/1"
)

type recordedWrite struct {
	repository string
	write      githubcli.FileWrite
}

type stubRepositoryHost struct {
	mutex               sync.Mutex
	repositories        []githubcli.OrganizationRepository
	properties          map[string][]githubcli.CustomPropertyValue
	trees               map[string][]githubcli.TreeEntry
	files               map[string]map[string]githubcli.FileContent
	branches            map[string]map[string]string
	openPullRequests    map[string]githubcli.PullRequest
	treeErrors          map[string]error
	onListTree          func(repository string)
	listError           error
	listTreeCalls       int
	listRequests        int
	writes              []recordedWrite
	createdBranches     []string
	createdPullRequests []githubcli.PullRequestRequest
}

func newStubRepositoryHost() *stubRepositoryHost {
	return &stubRepositoryHost{
		properties:       map[string][]githubcli.CustomPropertyValue{},
		trees:            map[string][]githubcli.TreeEntry{},
		files:            map[string]map[string]githubcli.FileContent{},
		branches:         map[string]map[string]string{},
		openPullRequests: map[string]githubcli.PullRequest{},
		treeErrors:       map[string]error{},
	}
}

func (host *stubRepositoryHost) addRepository(name string, files map[string]string) string {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	repositoryName := testOrganizationConstant + "/" + name
	host.repositories = append(host.repositories, githubcli.OrganizationRepository{
		Name:          name,
		NameWithOwner: repositoryName,
		DefaultBranch: testDefaultBranchConstant,
		PushedAt:      testPushedAtConstant,
	})
	var entries []githubcli.TreeEntry
	for filePath, content := range files {
		entries = append(entries, githubcli.TreeEntry{Path: filePath, SHA: "sha-" + filePath})
		host.setFileLocked(repositoryName, testDefaultBranchConstant, filePath, content, "sha-"+filePath)
	}
	host.trees[repositoryName] = entries
	host.branches[repositoryName] = map[string]string{testDefaultBranchConstant: testHeadSHAConstant}
	return repositoryName
}

func (host *stubRepositoryHost) setFile(repositoryName string, reference string, filePath string, content string, sha string) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.setFileLocked(repositoryName, reference, filePath, content, sha)
}

func (host *stubRepositoryHost) setFileLocked(repositoryName string, reference string, filePath string, content string, sha string) {
	if host.files[repositoryName] == nil {
		host.files[repositoryName] = map[string]githubcli.FileContent{}
	}
	host.files[repositoryName][reference+":"+filePath] = githubcli.FileContent{Path: filePath, SHA: sha, Content: []byte(content)}
}

func (host *stubRepositoryHost) ListOrganizationRepositories(_ context.Context, organization string, _ int) ([]githubcli.OrganizationRepository, error) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.listRequests++
	if host.listError != nil {
		return nil, host.listError
	}
	return append([]githubcli.OrganizationRepository(nil), host.repositories...), nil
}

func (host *stubRepositoryHost) ListCustomProperties(_ context.Context, repository string) ([]githubcli.CustomPropertyValue, error) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	return host.properties[repository], nil
}

func (host *stubRepositoryHost) ListTree(executionContext context.Context, repository string, _ string) (githubcli.TreeSnapshot, error) {
	if host.onListTree != nil {
		host.onListTree(repository)
	}
	if contextError := executionContext.Err(); contextError != nil {
		return githubcli.TreeSnapshot{}, contextError
	}
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.listTreeCalls++
	if treeError := host.treeErrors[repository]; treeError != nil {
		return githubcli.TreeSnapshot{}, treeError
	}
	return githubcli.TreeSnapshot{Entries: host.trees[repository]}, nil
}

func (host *stubRepositoryHost) GetFileContent(_ context.Context, repository string, path string, reference string) (githubcli.FileContent, error) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	fileContent, found := host.files[repository][reference+":"+path]
	if !found {
		return githubcli.FileContent{}, githubcli.NotFoundError{Operation: githubcli.OperationName("GetFileContent"), Resource: path}
	}
	return fileContent, nil
}

func (host *stubRepositoryHost) PutFileContent(executionContext context.Context, repository string, write githubcli.FileWrite) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.writes = append(host.writes, recordedWrite{repository: repository, write: write})
	return nil
}

func (host *stubRepositoryHost) GetBranchHead(_ context.Context, repository string, branch string) (string, error) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	headSHA, found := host.branches[repository][branch]
	if !found {
		return "", githubcli.NotFoundError{Operation: githubcli.OperationName("GetBranchHead"), Resource: branch}
	}
	return headSHA, nil
}

func (host *stubRepositoryHost) CreateBranch(_ context.Context, repository string, branch string, commitSHA string) error {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	if commitSHA != testHeadSHAConstant {
		return errors.New("unexpected base commit")
	}
	host.createdBranches = append(host.createdBranches, repository+"@"+branch)
	host.branches[repository][branch] = commitSHA
	return nil
}

func (host *stubRepositoryHost) FindOpenPullRequest(_ context.Context, repository string, branch string) (githubcli.PullRequest, bool, error) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	pullRequest, found := host.openPullRequests[repository]
	if !found || pullRequest.HeadRefName != branch {
		return githubcli.PullRequest{}, false, nil
	}
	return pullRequest, true, nil
}

func (host *stubRepositoryHost) CreatePullRequest(executionContext context.Context, repository string, request githubcli.PullRequestRequest) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.createdPullRequests = append(host.createdPullRequests, request)
	return testPullRequestURL, nil
}

func renderedDefaultDocument(testInstance *testing.T, repositoryName string, entries ...ecosystems.Entry) string {
	identity, identityError := shared.ParseRepositoryIdentity(repositoryName)
	require.NoError(testInstance, identityError)
	detection := ecosystems.NewDetectionResult(identity, "", "", entries)
	directives, resolveError := overrides.Resolve(identity, detection, overrides.DefaultRuleSet())
	require.NoError(testInstance, resolveError)
	document, synthesizeError := dependabot.Synthesize(directives, nil)
	require.NoError(testInstance, synthesizeError)
	content, renderError := dependabot.Render(document)
	require.NoError(testInstance, renderError)
	return string(content)
}
