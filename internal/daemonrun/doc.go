// Package daemonrun assembles and runs the binderyd process: logger, catalog,
// daemon, IPC socket, and the optional metrics listener.
package daemonrun
