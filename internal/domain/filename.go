package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxFileNameLength = 255

var fileNameReplacer = strings.NewReplacer(
	`\`, "_", "/", "_", "*", "_", "?", "_", `"`, "_", "'", "_",
	"<", "_", ">", "_", "|", "_", "[", "_", "]", "_", ";", "_",
	"=", "_", ",", "_", " ", "_", "$", "_",
)

// SanitizeFileName replaces characters that are unsafe in paths and in
// corrector argument vectors.
func SanitizeFileName(name string) string {
	return fileNameReplacer.Replace(name)
}

// CheckFileName validates a sanitized delivery name against the tool's
// naming rules. The command file is only accepted from privileged callers.
func CheckFileName(tool Tool, name string, privileged bool) error {
	if name == "" {
		return ErrInvalidFileName
	}
	if tool.IsCommandFile(name) {
		if privileged {
			return nil
		}
		return fmt.Errorf("%w: reserved name %q", ErrInvalidFileName, name)
	}
	if tool.IsTextFile(name) {
		return nil
	}
	if len(name) > MaxFileNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidFileName, MaxFileNameLength)
	}
	if tool.Config.InputFilePattern == "" {
		return nil
	}

	pattern, err := regexp.Compile("^(?:" + tool.Config.InputFilePattern + ")$")
	if err != nil {
		return fmt.Errorf("compile input file pattern: %w", err)
	}
	if !pattern.MatchString(name) {
		return fmt.Errorf("%w: %q does not match %q", ErrInvalidFileName, name, tool.Config.InputFilePattern)
	}

	return nil
}
