// Package shared holds repository value types and reporting helpers used across depbot packages.
package shared
