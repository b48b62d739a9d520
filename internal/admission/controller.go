// Package admission bounds how many gradings run at once, globally and per
// tool. Admission never blocks: a request is either accepted now or rejected.
package admission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/grader/internal/observability"
)

// ErrConcurrentConflict means a (tool, user) token was already held. Callers
// reach this only if a double submission slipped past the session layer.
var ErrConcurrentConflict = errors.New("admission token already held")

type Decision int

const (
	RejectedGlobal Decision = iota
	RejectedTool
	Granted
	GrantedDegraded
)

func (d Decision) String() string {
	switch d {
	case RejectedGlobal:
		return "rejected_global"
	case RejectedTool:
		return "rejected_tool"
	case Granted:
		return "granted"
	case GrantedDegraded:
		return "granted_degraded"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

func (d Decision) Admitted() bool {
	return d == Granted || d == GrantedDegraded
}

type token struct {
	tool string
	user string
}

type Stats struct {
	Global  int
	PerTool map[string]int
}

// Controller owns the global and per-tool membership sets. Both are guarded
// by one mutex so check-and-insert is a single step.
type Controller struct {
	mu          sync.Mutex
	globalLimit int
	global      map[token]struct{}
	perTool     map[string]map[string]struct{}
}

// NewController returns a controller admitting at most globalLimit gradings.
// A limit of zero or less is unlimited.
func NewController(globalLimit int) *Controller {
	return &Controller{
		globalLimit: globalLimit,
		global:      map[token]struct{}{},
		perTool:     map[string]map[string]struct{}{},
	}
}

// TryAcquire admits user on tool when both the global limit and toolLimit
// have room. toolLimit <= 0 disables the per-tool cap.
func (c *Controller) TryAcquire(tool string, toolLimit int, user string) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.globalHasRoomLocked() {
		return c.recordLocked(tool, RejectedGlobal), nil
	}
	if toolLimit > 0 && len(c.perTool[tool]) >= toolLimit {
		return c.recordLocked(tool, RejectedTool), nil
	}

	key := token{tool: tool, user: user}
	if _, held := c.global[key]; held {
		return RejectedTool, fmt.Errorf("acquire %s:%s: %w", tool, user, ErrConcurrentConflict)
	}

	c.global[key] = struct{}{}
	users, ok := c.perTool[tool]
	if !ok {
		users = map[string]struct{}{}
		c.perTool[tool] = users
	}
	users[user] = struct{}{}

	return c.recordLocked(tool, Granted), nil
}

// TryAcquireDegraded admits user against the global limit only. The token is
// not counted toward the tool, and the admitted request must not grade.
func (c *Controller) TryAcquireDegraded(tool, user string) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.globalHasRoomLocked() {
		return c.recordLocked(tool, RejectedGlobal), nil
	}

	key := token{tool: tool, user: user}
	if _, held := c.global[key]; held {
		return RejectedGlobal, fmt.Errorf("acquire degraded %s:%s: %w", tool, user, ErrConcurrentConflict)
	}
	c.global[key] = struct{}{}

	return c.recordLocked(tool, GrantedDegraded), nil
}

// GlobalHasRoom reports whether a degraded admission could currently succeed.
func (c *Controller) GlobalHasRoom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.globalHasRoomLocked()
}

// Release drops the (tool, user) pair from both sets. Releasing a pair that
// is not held is a no-op.
func (c *Controller) Release(tool, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.global, token{tool: tool, user: user})
	if users, ok := c.perTool[tool]; ok {
		delete(users, user)
		if len(users) == 0 {
			delete(c.perTool, tool)
		}
	}
	observability.SetInFlight(tool, len(c.perTool[tool]))
}

func (c *Controller) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Global: len(c.global), PerTool: make(map[string]int, len(c.perTool))}
	for tool, users := range c.perTool {
		stats.PerTool[tool] = len(users)
	}
	return stats
}

func (c *Controller) globalHasRoomLocked() bool {
	return c.globalLimit <= 0 || len(c.global) < c.globalLimit
}

func (c *Controller) recordLocked(tool string, d Decision) Decision {
	observability.RecordAdmission(tool, d.String())
	observability.SetInFlight(tool, len(c.perTool[tool]))
	return d
}
