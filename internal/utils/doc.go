// Package utils hosts the configuration loader and logger factory shared by depbot commands.
package utils
