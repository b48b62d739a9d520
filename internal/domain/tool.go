package domain

import (
	"fmt"
	"strings"
	"time"
)

type ToolKeyID string

type ToolKey struct {
	ID          ToolKeyID
	ToolName    string
	ConsumerKey string
}

type RunnerKind int

const (
	RunnerUnknown RunnerKind = iota
	RunnerLocal
	RunnerHTTP
	RunnerStorage
	RunnerDummy
)

func (k RunnerKind) String() string {
	switch k {
	case RunnerLocal:
		return "local"
	case RunnerHTTP:
		return "http"
	case RunnerStorage:
		return "storage"
	case RunnerDummy:
		return "dummy"
	default:
		return "unknown"
	}
}

func ParseRunnerKind(raw string) (RunnerKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "local":
		return RunnerLocal, nil
	case "http":
		return RunnerHTTP, nil
	case "storage":
		return RunnerStorage, nil
	case "dummy":
		return RunnerDummy, nil
	default:
		return RunnerUnknown, fmt.Errorf("unknown runner kind %q", raw)
	}
}

type ToolConfig struct {
	MaxConcurrentUsers     int
	KeepFiles              bool
	KeepOutput             bool
	ManageAttempts         bool
	// MaxAttempts of zero or less is unlimited. Configs where 0 meant "no
	// attempts allowed" must disable the tool instead.
	MaxAttempts            int
	MaxAttemptsPerFileName bool
	InputFilePattern       string
	MaxUploadKB            int
	CommandEnabled         bool
	CommandFileName        string
	TextEnabled            bool
	TextFileName           string
}

// Tool is an immutable snapshot handed out by the tool catalog. Callers must
// not mutate it; edits go through the catalog and invalidate the snapshot.
type Tool struct {
	Name             string
	DataDir          string
	CorrectorPath    string
	RunnerKind       RunnerKind
	DeliveryPassword string
	Enabled          bool
	EnabledFrom      *time.Time
	EnabledUntil     *time.Time
	Outcome          bool
	ExtraArgs        []string
	PrivilegedArgs   []string
	Counter          int64
	Config           ToolConfig
}

// EnabledAt reports whether deliveries are accepted at t. The window bounds
// are stretched by grace on both ends.
func (t Tool) EnabledAt(at time.Time, grace time.Duration) bool {
	if !t.Enabled {
		return false
	}
	if t.EnabledFrom != nil && at.Before(t.EnabledFrom.Add(-grace)) {
		return false
	}
	if t.EnabledUntil != nil && at.After(t.EnabledUntil.Add(grace)) {
		return false
	}
	return true
}

// NearDeadline reports whether at falls within window before EnabledUntil.
func (t Tool) NearDeadline(at time.Time, window time.Duration) bool {
	if t.EnabledUntil == nil {
		return false
	}
	return !at.Before(t.EnabledUntil.Add(-window))
}

func (t Tool) HasPassword() bool {
	return t.DeliveryPassword != ""
}

func (t Tool) IsCommandFile(fileName string) bool {
	return t.Config.CommandEnabled && t.Config.CommandFileName != "" && fileName == t.Config.CommandFileName
}

func (t Tool) IsTextFile(fileName string) bool {
	return t.Config.TextEnabled && t.Config.TextFileName != "" && fileName == t.Config.TextFileName
}
