// Package notifications delivers bindery events to ntfy.
//
// Publish takes a topic and a payload; books, batch summaries, errors, and
// plain strings get readable messages, anything else is sent as JSON. Without
// a configured ntfy topic the service is a no-op.
package notifications
