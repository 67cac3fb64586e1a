package githubcli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	treeEndpointTemplateConstant         = "repos/%s/git/trees/%s?recursive=1"
	contentsEndpointTemplateConstant     = "repos/%s/contents/%s"
	contentsReadEndpointTemplateConstant = "repos/%s/contents/%s?ref=%s"
	treeEntryTypeBlobConstant            = "blob"
	base64EncodingNameConstant           = "base64"
	unsupportedEncodingTemplateConstant  = "unsupported content encoding %q"
	fileResourceTemplateConstant         = "%s:%s@%s"
	listTreeOperationNameConstant        = OperationName("ListTree")
	getFileContentOperationNameConstant  = OperationName("GetFileContent")
	putFileContentOperationNameConstant  = OperationName("PutFileContent")
)

// TreeEntry describes one file of a repository tree snapshot.
type TreeEntry struct {
	Path string
	SHA  string
}

// TreeSnapshot lists the files of a repository at a ref.
type TreeSnapshot struct {
	Entries   []TreeEntry
	Truncated bool
}

// FileContent is a decoded file read from a branch.
type FileContent struct {
	Path    string
	SHA     string
	Content []byte
}

// FileWrite describes a create-or-update of a single file on a branch.
type FileWrite struct {
	Path          string
	Branch        string
	Content       []byte
	CommitMessage string
	// ExistingSHA must be set when replacing a file that is already present on Branch.
	ExistingSHA string
}

type contentCacheKey struct {
	repository string
	path       string
	reference  string
}

type cachedContent struct {
	content FileContent
	found   bool
}

// ListTree returns the blob entries of the repository tree at reference.
// An empty repository yields an empty snapshot.
func (client *Client) ListTree(executionContext context.Context, repository string, reference string) (TreeSnapshot, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return TreeSnapshot{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(reference)) == 0 {
		return TreeSnapshot{}, InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext, []string{
		apiSubcommandConstant,
		fmt.Sprintf(treeEndpointTemplateConstant, repositoryIdentifier, url.PathEscape(reference)),
		acceptHeaderFlagConstant,
		acceptHeaderValueConstant,
	}, nil)
	if executionError != nil {
		if commandFailedWithStatus(executionError, conflictStatusMarkerConstant) {
			return TreeSnapshot{}, nil
		}
		if commandFailedWithStatus(executionError, notFoundStatusMarkerConstant) {
			return TreeSnapshot{}, NotFoundError{Operation: listTreeOperationNameConstant, Resource: repositoryIdentifier + "@" + reference}
		}
		return TreeSnapshot{}, OperationError{Operation: listTreeOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return TreeSnapshot{}, ResponseDecodingError{Operation: listTreeOperationNameConstant, Cause: decodingError}
	}

	snapshot := TreeSnapshot{Truncated: response.Truncated, Entries: make([]TreeEntry, 0, len(response.Tree))}
	for _, treeEntry := range response.Tree {
		if treeEntry.Type != treeEntryTypeBlobConstant {
			continue
		}
		snapshot.Entries = append(snapshot.Entries, TreeEntry{Path: treeEntry.Path, SHA: treeEntry.SHA})
	}
	return snapshot, nil
}

// GetFileContent reads a file from a branch. A missing file yields a NotFoundError.
// Results, including misses, are remembered until the same file is written through the client.
func (client *Client) GetFileContent(executionContext context.Context, repository string, path string, reference string) (FileContent, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return FileContent{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	filePath := strings.Trim(strings.TrimSpace(path), "/")
	if len(filePath) == 0 {
		return FileContent{}, InvalidInputError{FieldName: pathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(reference)) == 0 {
		return FileContent{}, InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	cacheKey := contentCacheKey{repository: repositoryIdentifier, path: filePath, reference: reference}
	notFoundError := NotFoundError{Operation: getFileContentOperationNameConstant, Resource: fmt.Sprintf(fileResourceTemplateConstant, repositoryIdentifier, filePath, reference)}
	if cachedEntry, cached := client.contentCache.Get(cacheKey); cached {
		if !cachedEntry.found {
			return FileContent{}, notFoundError
		}
		return cachedEntry.content, nil
	}

	executionResult, executionError := client.execute(executionContext, []string{
		apiSubcommandConstant,
		fmt.Sprintf(contentsReadEndpointTemplateConstant, repositoryIdentifier, escapePathSegments(filePath), url.QueryEscape(reference)),
		acceptHeaderFlagConstant,
		acceptHeaderValueConstant,
	}, nil)
	if executionError != nil {
		if commandFailedWithStatus(executionError, notFoundStatusMarkerConstant) {
			client.contentCache.Add(cacheKey, cachedContent{found: false})
			return FileContent{}, notFoundError
		}
		return FileContent{}, OperationError{Operation: getFileContentOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Path     string `json:"path"`
		SHA      string `json:"sha"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return FileContent{}, ResponseDecodingError{Operation: getFileContentOperationNameConstant, Cause: decodingError}
	}
	if response.Encoding != base64EncodingNameConstant {
		return FileContent{}, ResponseDecodingError{Operation: getFileContentOperationNameConstant, Cause: fmt.Errorf(unsupportedEncodingTemplateConstant, response.Encoding)}
	}

	decodedContent, decodingError := base64.StdEncoding.DecodeString(strings.ReplaceAll(response.Content, "\n", ""))
	if decodingError != nil {
		return FileContent{}, ResponseDecodingError{Operation: getFileContentOperationNameConstant, Cause: decodingError}
	}

	fileContent := FileContent{Path: filePath, SHA: response.SHA, Content: decodedContent}
	client.contentCache.Add(cacheKey, cachedContent{content: fileContent, found: true})
	return fileContent, nil
}

// PutFileContent creates or replaces a file on a branch through the contents API.
func (client *Client) PutFileContent(executionContext context.Context, repository string, write FileWrite) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	filePath := strings.Trim(strings.TrimSpace(write.Path), "/")
	if len(filePath) == 0 {
		return InvalidInputError{FieldName: pathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(write.Branch)) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payload := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha,omitempty"`
	}{
		Message: write.CommitMessage,
		Content: base64.StdEncoding.EncodeToString(write.Content),
		Branch:  write.Branch,
		SHA:     write.ExistingSHA,
	}
	payloadBytes, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return PayloadEncodingError{Operation: putFileContentOperationNameConstant, Cause: encodingError}
	}

	_, executionError := client.execute(executionContext, []string{
		apiSubcommandConstant,
		fmt.Sprintf(contentsEndpointTemplateConstant, repositoryIdentifier, escapePathSegments(filePath)),
		methodFlagConstant,
		httpMethodPutConstant,
		inputFlagConstant,
		stdinReferenceConstant,
		acceptHeaderFlagConstant,
		acceptHeaderValueConstant,
	}, payloadBytes)
	client.contentCache.Remove(contentCacheKey{repository: repositoryIdentifier, path: filePath, reference: write.Branch})
	if executionError != nil {
		return OperationError{Operation: putFileContentOperationNameConstant, Cause: executionError}
	}
	return nil
}

// escapePathSegments escapes each segment of a repository file path for use in an API endpoint.
func escapePathSegments(filePath string) string {
	segments := strings.Split(filePath, "/")
	for segmentIndex, segment := range segments {
		segments[segmentIndex] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
