package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	githubRepoSubcommandNameConstant        = "repo"
	githubRepoListSubcommandNameConstant    = "list"
	githubPullRequestSubcommandNameConstant = "pr"
	githubPullRequestCreateNameConstant     = "create"
	githubAPICommandNameConstant            = "api"
	githubMethodFlagConstant                = "-X"
	githubRepoFlagConstant                  = "--repo"
	githubDefaultMethodConstant             = "GET"
)

const (
	githubRepoListStartTemplateConstant            = "Listing repositories of %s"
	githubRepoListSuccessTemplateConstant          = "Listed repositories of %s"
	githubRepoListFailureTemplateConstant          = "Failed to list repositories of %s (exit code %d%s)"
	githubRepoListExecutionFailureTemplateConstant = "Unable to list repositories of %s: %s"
	githubPullRequestStartTemplateConstant         = "Running pull request %s for %s"
	githubPullRequestSuccessTemplateConstant       = "Finished pull request %s for %s"
	githubPullRequestFailureTemplateConstant       = "Pull request %s for %s failed (exit code %d%s)"
	githubPullRequestExecutionTemplateConstant     = "Unable to run pull request %s for %s: %s"
	githubAPIStartTemplateConstant                 = "Calling GitHub API %s %s"
	githubAPISuccessTemplateConstant               = "GitHub API %s %s succeeded"
	githubAPIFailureTemplateConstant               = "GitHub API %s %s failed (exit code %d%s)"
	githubAPIExecutionFailureTemplateConstant      = "Unable to call GitHub API %s %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGitHub || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	arguments := command.Details.Arguments
	switch strings.TrimSpace(arguments[0]) {
	case githubRepoSubcommandNameConstant:
		if len(arguments) > 2 && arguments[1] == githubRepoListSubcommandNameConstant {
			owner := formatter.ensureValue(arguments[2])
			return formatter.selectTemplate(stage,
				fmt.Sprintf(githubRepoListStartTemplateConstant, owner),
				fmt.Sprintf(githubRepoListSuccessTemplateConstant, owner),
				fmt.Sprintf(githubRepoListFailureTemplateConstant, owner, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError)),
				fmt.Sprintf(githubRepoListExecutionFailureTemplateConstant, owner, formatter.describeFailure(failure)),
			)
		}
	case githubPullRequestSubcommandNameConstant:
		if len(arguments) > 1 {
			action := arguments[1]
			repository := formatter.ensureValue(findFlagValue(arguments, githubRepoFlagConstant))
			return formatter.selectTemplate(stage,
				fmt.Sprintf(githubPullRequestStartTemplateConstant, action, repository),
				fmt.Sprintf(githubPullRequestSuccessTemplateConstant, action, repository),
				fmt.Sprintf(githubPullRequestFailureTemplateConstant, action, repository, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError)),
				fmt.Sprintf(githubPullRequestExecutionTemplateConstant, action, repository, formatter.describeFailure(failure)),
			)
		}
	case githubAPICommandNameConstant:
		if len(arguments) > 1 {
			endpoint := arguments[1]
			method := findFlagValue(arguments, githubMethodFlagConstant)
			if len(method) == 0 {
				method = githubDefaultMethodConstant
			}
			return formatter.selectTemplate(stage,
				fmt.Sprintf(githubAPIStartTemplateConstant, method, endpoint),
				fmt.Sprintf(githubAPISuccessTemplateConstant, method, endpoint),
				fmt.Sprintf(githubAPIFailureTemplateConstant, method, endpoint, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError)),
				fmt.Sprintf(githubAPIExecutionFailureTemplateConstant, method, endpoint, formatter.describeFailure(failure)),
			)
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) selectTemplate(stage messageStage, start string, success string, failure string, executionFailure string) string {
	switch stage {
	case messageStageStart:
		return start
	case messageStageSuccess:
		return success
	case messageStageFailure:
		return failure
	default:
		return executionFailure
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)

	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return commandLabel
	}
	return commandLabel + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex < len(arguments)-1; argumentIndex++ {
		if arguments[argumentIndex] == flag {
			return arguments[argumentIndex+1]
		}
	}
	return emptyStringConstant
}
