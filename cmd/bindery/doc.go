// Command bindery manages book libraries and drives relocation through the
// binderyd daemon, or in-process with --local when no daemon is running.
package main
