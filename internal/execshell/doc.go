// Package execshell runs external tools for depbot.
//
// ShellExecutor wraps a CommandRunner with zap lifecycle logging and typed
// failures, and OSCommandRunner is the os/exec backed default. The GitHub host
// client drives the gh CLI exclusively through this package so tests can swap
// the runner for a recording stub.
package execshell
