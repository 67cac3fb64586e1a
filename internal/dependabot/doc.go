// Package dependabot builds .github/dependabot.yml documents from resolved update directives
// and compares them with committed documents by canonical form.
package dependabot
