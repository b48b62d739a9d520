package domain

import "time"

type SessionID string

// LaunchContext is the server-side session established by the launch layer.
// The grader trusts it as-is; launch signature checks happen upstream.
type LaunchContext struct {
	SessionID      SessionID
	LaunchID       string
	ToolKeyID      ToolKeyID
	ResourceUser   ResourceUser
	Privileged     bool
	OutcomeAllowed bool
	CustomArgs     []string
	CreatedAt      time.Time
}
