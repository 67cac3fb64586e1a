package githubcli

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	pullRequestStateOpenConstant           = "open"
	pullRequestJSONFieldsConstant          = "number,title,headRefName,url"
	findPullRequestOperationNameConstant   = OperationName("FindOpenPullRequest")
	createPullRequestOperationNameConstant = OperationName("CreatePullRequest")
	singleResultLimitConstant              = "1"
)

// PullRequest represents minimal pull request details returned by GitHub CLI.
type PullRequest struct {
	Number      int
	Title       string
	HeadRefName string
	URL         string
}

// PullRequestRequest describes a pull request to open.
type PullRequestRequest struct {
	HeadBranch string
	BaseBranch string
	Title      string
	Body       string
}

// FindOpenPullRequest looks up an open pull request whose head is branch.
func (client *Client) FindOpenPullRequest(executionContext context.Context, repository string, branch string) (PullRequest, bool, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return PullRequest{}, false, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return PullRequest{}, false, InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext, []string{
		pullRequestSubcommandConstant,
		listSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		headFlagConstant,
		branchName,
		stateFlagConstant,
		pullRequestStateOpenConstant,
		jsonFlagConstant,
		pullRequestJSONFieldsConstant,
		limitFlagConstant,
		singleResultLimitConstant,
	}, nil)
	if executionError != nil {
		return PullRequest{}, false, OperationError{Operation: findPullRequestOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		Number      int    `json:"number"`
		Title       string `json:"title"`
		HeadRefName string `json:"headRefName"`
		URL         string `json:"url"`
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return PullRequest{}, false, ResponseDecodingError{Operation: findPullRequestOperationNameConstant, Cause: decodingError}
	}
	if len(response) == 0 {
		return PullRequest{}, false, nil
	}

	return PullRequest{
		Number:      response[0].Number,
		Title:       response[0].Title,
		HeadRefName: response[0].HeadRefName,
		URL:         response[0].URL,
	}, true, nil
}

// CreatePullRequest opens a pull request and returns its URL.
func (client *Client) CreatePullRequest(executionContext context.Context, repository string, request PullRequestRequest) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(request.HeadBranch)) == 0 || len(strings.TrimSpace(request.BaseBranch)) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(request.Title)) == 0 {
		return "", InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext, []string{
		pullRequestSubcommandConstant,
		createSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		headFlagConstant,
		request.HeadBranch,
		baseFlagConstant,
		request.BaseBranch,
		titleFlagConstant,
		request.Title,
		bodyFlagConstant,
		request.Body,
	}, nil)
	if executionError != nil {
		return "", OperationError{Operation: createPullRequestOperationNameConstant, Cause: executionError}
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}
