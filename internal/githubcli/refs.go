package githubcli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	branchRefEndpointTemplateConstant  = "repos/%s/git/ref/heads/%s"
	createRefEndpointTemplateConstant  = "repos/%s/git/refs"
	branchRefNameTemplateConstant      = "refs/heads/%s"
	getBranchHeadOperationNameConstant = OperationName("GetBranchHead")
	createBranchOperationNameConstant  = OperationName("CreateBranch")
)

// GetBranchHead returns the commit SHA a branch points at. A missing branch yields a NotFoundError.
func (client *Client) GetBranchHead(executionContext context.Context, repository string, branch string) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext, []string{
		apiSubcommandConstant,
		fmt.Sprintf(branchRefEndpointTemplateConstant, repositoryIdentifier, branchName),
		acceptHeaderFlagConstant,
		acceptHeaderValueConstant,
	}, nil)
	if executionError != nil {
		if commandFailedWithStatus(executionError, notFoundStatusMarkerConstant) {
			return "", NotFoundError{Operation: getBranchHeadOperationNameConstant, Resource: repositoryIdentifier + "@" + branchName}
		}
		return "", OperationError{Operation: getBranchHeadOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return "", ResponseDecodingError{Operation: getBranchHeadOperationNameConstant, Cause: decodingError}
	}
	return response.Object.SHA, nil
}

// CreateBranch creates branch pointing at commitSHA.
func (client *Client) CreateBranch(executionContext context.Context, repository string, branch string, commitSHA string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(commitSHA)) == 0 {
		return InvalidInputError{FieldName: shaFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payloadBytes, encodingError := json.Marshal(struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}{
		Ref: fmt.Sprintf(branchRefNameTemplateConstant, branchName),
		SHA: commitSHA,
	})
	if encodingError != nil {
		return PayloadEncodingError{Operation: createBranchOperationNameConstant, Cause: encodingError}
	}

	_, executionError := client.execute(executionContext, []string{
		apiSubcommandConstant,
		fmt.Sprintf(createRefEndpointTemplateConstant, repositoryIdentifier),
		methodFlagConstant,
		httpMethodPostConstant,
		inputFlagConstant,
		stdinReferenceConstant,
		acceptHeaderFlagConstant,
		acceptHeaderValueConstant,
	}, payloadBytes)
	if executionError != nil {
		return OperationError{Operation: createBranchOperationNameConstant, Cause: executionError}
	}
	return nil
}
