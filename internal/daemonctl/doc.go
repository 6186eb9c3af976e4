// Package daemonctl launches and stops binderyd from the CLI.
package daemonctl
