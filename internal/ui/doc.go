// Package ui adapts execshell lifecycle events for console-formatted logging.
package ui
