package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
)

const (
	maxFieldBytes = 4 << 10
	userDirMode   = 0o700
	uploadMode    = 0o600
)

// checkLaunch consumes the first part, which must carry the session's launch
// id. Anything else aborts the delivery before admission.
func (s *AssessmentService) checkLaunch(parts PartReader, launch domain.LaunchContext) error {
	part, err := parts.NextPart()
	if err != nil {
		return fmt.Errorf("%w: read first part: %v", domain.ErrInvalidLaunch, err)
	}
	if part.IsFile() || part.Name != PartLaunchID {
		return fmt.Errorf("%w: first part is %q", domain.ErrInvalidLaunch, part.Name)
	}

	value, err := readField(part.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidLaunch, err)
	}
	if launch.LaunchID == "" || subtle.ConstantTimeCompare([]byte(value), []byte(launch.LaunchID)) != 1 {
		return domain.ErrInvalidLaunch
	}
	return nil
}

// receive walks the remaining parts until it holds a file to grade: either a
// fresh upload or, for privileged reassessments, an earlier delivery.
func (s *AssessmentService) receive(ctx context.Context, a *assessment, parts PartReader) *AssessmentResult {
	passwordOK := !a.tool.HasPassword()

	for a.filePath == "" {
		part, err := parts.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.rejection(a, fmt.Errorf("%w: %v", domain.ErrUnexpectedPart, err), msgBadRequest)
		}

		if part.IsFile() {
			if !passwordOK {
				return s.rejection(a, domain.ErrWrongPassword, msgWrongPassword)
			}
			if rejected := s.storeUpload(ctx, a, part); rejected != nil {
				return rejected
			}
			continue
		}

		switch part.Name {
		case PartPassword:
			value, err := readField(part.Body)
			if err != nil {
				return s.rejection(a, err, msgBadRequest)
			}
			if a.tool.HasPassword() && subtle.ConstantTimeCompare([]byte(value), []byte(a.tool.DeliveryPassword)) == 1 {
				passwordOK = true
			} else if !passwordOK {
				a.log.Info("incorrect delivery password")
			}
		case PartSID:
			if !a.launch.Privileged || !a.tool.Config.ManageAttempts {
				return s.rejection(a, domain.ErrNotPrivileged, msgNotPrivileged)
			}
			value, err := readField(part.Body)
			if err != nil {
				return s.rejection(a, err, msgBadRequest)
			}
			token, err := url.QueryUnescape(strings.TrimSpace(value))
			if err != nil {
				return s.rejection(a, fmt.Errorf("%w: %v", domain.ErrReferenceBinding, err), msgInvalidReference)
			}
			if rejected := s.locateOriginal(ctx, a, token); rejected != nil {
				return rejected
			}
		default:
			return s.rejection(a, fmt.Errorf("%w: %q", domain.ErrUnexpectedPart, part.Name), msgBadRequest)
		}
	}

	if !passwordOK {
		return s.rejection(a, domain.ErrWrongPassword, msgWrongPassword)
	}
	if a.filePath == "" {
		return s.rejection(a, domain.ErrMissingPart, msgMissingPart)
	}
	return nil
}

// locateOriginal points the assessment at the delivery behind token. The
// output goes to the caller's own folder so the original output survives.
func (s *AssessmentService) locateOriginal(ctx context.Context, a *assessment, token string) *AssessmentResult {
	original, err := s.ResolveReference(ctx, token, a.key.ID)
	if err != nil {
		return s.rejection(a, err, msgInvalidReference)
	}

	a.attempt.OriginalResourceUser = original.OriginalResourceUser
	a.attempt.FileName = original.FileName
	a.attempt.CreatedAt = original.CreatedAt

	filePath := a.attempt.FilePath(a.dataDir)
	if info, err := os.Stat(filePath); err != nil || !info.Mode().IsRegular() {
		return s.rejection(a, fmt.Errorf("%w: attempt %d", domain.ErrMissingFile, original.SerialID), msgMissingFile)
	}

	userDir := filepath.Join(a.dataDir, url.QueryEscape(a.launch.ResourceUser.UserID))
	if err := os.MkdirAll(userDir, userDirMode); err != nil {
		return s.rejection(a, fmt.Errorf("create user folder: %w", err), msgIO)
	}

	a.filePath = filePath
	a.outputPath = filepath.Join(userDir, a.attempt.StorageID()+domain.OutputSuffix)
	a.ownsFile = false
	a.reassess = true
	a.log.Info("reassessing earlier delivery", "serial", original.SerialID, "owner", original.OriginalResourceUser.UserID)
	return nil
}

func (s *AssessmentService) storeUpload(ctx context.Context, a *assessment, part Part) *AssessmentResult {
	name := domain.SanitizeFileName(part.FileName)
	a.attempt.FileName = name

	if limit := a.tool.Config.MaxAttempts; limit > 0 {
		filter := ports.AttemptFilter{UserID: a.launch.ResourceUser.UserID, ToolKeyID: a.key.ID}
		if a.tool.Config.MaxAttemptsPerFileName {
			filter.FileName = name
		}
		count, err := s.attempts.CountAttempts(ctx, filter)
		if err != nil {
			return s.rejection(a, fmt.Errorf("count attempts: %w", err), msgIO)
		}
		if count >= limit {
			return s.rejection(a, domain.ErrTooManyAttempts, msgTooManyAttempts)
		}
	}

	if err := domain.CheckFileName(a.tool, name, a.launch.Privileged); err != nil {
		return s.rejection(a, err, msgInvalidFileName)
	}

	limitKB := s.uploadLimitKB(a.tool)
	filePath := a.attempt.FilePath(a.dataDir)
	if err := writeUpload(filePath, part.Body, int64(limitKB)*1024); err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) {
			return s.rejection(a, err, fmt.Sprintf(msgTooLarge, limitKB))
		}
		return s.rejection(a, err, msgIO)
	}

	a.filePath = filePath
	a.outputPath = a.attempt.OutputPath(a.dataDir)
	a.attempt.FileSaved = true
	return nil
}

// uploadLimitKB is the global limit, lowered by the tool's own limit.
func (s *AssessmentService) uploadLimitKB(tool domain.Tool) int {
	limit := s.settings.MaxUploadKB
	if tool.Config.MaxUploadKB > 0 && tool.Config.MaxUploadKB < limit {
		limit = tool.Config.MaxUploadKB
	}
	return limit
}

func (s *AssessmentService) rejection(a *assessment, reason error, message string) *AssessmentResult {
	result := s.reject(a.tool, reason, message)
	return &result
}

func (s *AssessmentService) readOutput(path string) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(s.settings.MaxOutputKB)*1024))
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(data), "�")
}

func writeUpload(path string, body io.Reader, limit int64) error {
	if err := os.MkdirAll(filepath.Dir(path), userDirMode); err != nil {
		return fmt.Errorf("create user folder: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, uploadMode)
	if err != nil {
		return fmt.Errorf("create delivery file: %w", err)
	}

	written, copyErr := io.Copy(file, io.LimitReader(body, limit+1))
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return fmt.Errorf("write delivery file: %w", copyErr)
	case written > limit:
		_ = os.Remove(path)
		return domain.ErrFileTooLarge
	case closeErr != nil:
		_ = os.Remove(path)
		return fmt.Errorf("close delivery file: %w", closeErr)
	}
	return nil
}

func readField(body io.Reader) (string, error) {
	if body == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(body, maxFieldBytes))
	if err != nil {
		return "", fmt.Errorf("read field: %w", err)
	}
	return string(data), nil
}

// expandExtraArgs resolves the tool's argument templates for one launch.
// ${custom_args} expands to every custom argument of the launch.
func expandExtraArgs(tool domain.Tool, launch domain.LaunchContext) []string {
	if len(tool.ExtraArgs) == 0 {
		return nil
	}

	replacer := strings.NewReplacer(
		"${user_id}", launch.ResourceUser.UserID,
		"${tool}", tool.Name,
		"${context_id}", launch.ResourceUser.ContextID,
		"${resource_link_id}", launch.ResourceUser.ResourceLinkID,
	)

	args := make([]string, 0, len(tool.ExtraArgs))
	for _, arg := range tool.ExtraArgs {
		arg = strings.TrimSpace(arg)
		if arg == "${custom_args}" {
			for _, custom := range launch.CustomArgs {
				if custom = strings.TrimSpace(custom); custom != "" {
					args = append(args, custom)
				}
			}
			continue
		}
		args = append(args, replacer.Replace(arg))
	}
	return args
}
