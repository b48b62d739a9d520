// Package retention decides which artifacts of a graded attempt survive and
// deletes the rest.
package retention

import (
	"errors"
	"fmt"
	"os"

	"github.com/bnema/grader/internal/domain"
	"github.com/go-logr/logr"
)

type Flags struct {
	KeepFiles  bool
	KeepOutput bool
}

func FlagsFor(tool domain.Tool) Flags {
	return Flags{KeepFiles: tool.Config.KeepFiles, KeepOutput: tool.Config.KeepOutput}
}

// Outcome is the part of a classified attempt the policy looks at.
type Outcome struct {
	// Command is set when a privileged caller delivered the reserved command
	// file.
	Command bool
	Code    int
}

type Decision struct {
	KeepFile   bool
	KeepOutput bool
}

// Apply is a pure function of flags and outcome. Rules, first match wins:
// nothing is kept when neither flag is set; command runs and failures keep
// nothing; otherwise each flag applies on its own.
func Apply(flags Flags, outcome Outcome) Decision {
	if !flags.KeepFiles && !flags.KeepOutput {
		return Decision{}
	}
	if outcome.Command || outcome.Code > domain.MaxScore {
		return Decision{}
	}
	return Decision{KeepFile: flags.KeepFiles, KeepOutput: flags.KeepOutput}
}

type Artifacts struct {
	FilePath   string
	OutputPath string
	// OwnsFile is false when the file belongs to an earlier attempt that is
	// being reassessed. Such a file is never deleted.
	OwnsFile bool
}

// OutputCleaner removes a corrector output and its diagnostics sibling.
type OutputCleaner interface {
	Clean(outputPath string) error
}

type CleanerFunc func(outputPath string) error

func (f CleanerFunc) Clean(outputPath string) error {
	return f(outputPath)
}

// Enforce deletes what decision does not keep and records what survives on
// attempt. Failures are logged, not returned. Running it twice with the same
// inputs leaves the same state as running it once.
func Enforce(log logr.Logger, attempt *domain.Attempt, artifacts Artifacts, decision Decision, cleaner OutputCleaner) {
	if !decision.KeepFile && artifacts.OwnsFile {
		if err := removeIfExists(artifacts.FilePath); err != nil {
			log.Error(err, "delete delivered file", "path", artifacts.FilePath)
		}
	}

	if !decision.KeepOutput {
		if err := cleaner.Clean(artifacts.OutputPath); err != nil {
			log.Error(err, "delete corrector output", "path", artifacts.OutputPath)
		}
	}

	attempt.FileSaved = artifacts.OwnsFile && exists(artifacts.FilePath)
	attempt.OutputSaved = nonEmpty(artifacts.OutputPath)
}

func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func nonEmpty(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
