// Package githubcli wraps the GitHub CLI for the repository operations depbot needs.
//
// Every operation is a gh invocation routed through execshell, so tests substitute
// a stub executor and assert on the recorded arguments.
package githubcli
