package app

import "time"

// Session identifies one run of the CLI. Its ID tags every log line written
// during the run.
type Session struct {
	ID        string
	Command   string
	StartedAt time.Time
}

// NewSession creates a session for command started at now.
func NewSession(command string, now time.Time) Session {
	return Session{
		ID:        now.UTC().Format("20060102T150405Z"),
		Command:   command,
		StartedAt: now,
	}
}

// Interactive reports whether the session runs the interactive shell.
func (s Session) Interactive() bool {
	return s.Command == "shell"
}
