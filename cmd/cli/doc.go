// Package cli constructs the depbot command-line interface: the Cobra command hierarchy, the layered
// configuration loader (embedded defaults, config file, DEPBOT_ environment variables), and the zap
// logger handed to subcommands.
package cli
