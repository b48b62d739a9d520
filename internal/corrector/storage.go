package corrector

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/bnema/grader/internal/domain"
	"github.com/go-logr/logr"
)

const acceptedMark = "✓\n"

// storageRunner accepts every delivery with a full score. When an uploader
// is configured the file is also copied to object storage.
type storageRunner struct {
	artifacts
	log      logr.Logger
	tool     string
	uploader Uploader
}

func (r *storageRunner) Exec(ctx context.Context, inv Invocation) int {
	if r.uploader != nil {
		ctx, cancel := context.WithTimeout(ctx, inv.timeout())
		defer cancel()

		object := path.Join(r.tool, filepath.Base(filepath.Dir(inv.InputPath)), filepath.Base(inv.InputPath))
		if err := r.uploader.Upload(ctx, object, inv.InputPath); err != nil {
			r.log.Error(err, "upload delivery", "object", object)
			_ = os.WriteFile(inv.OutputPath+domain.ErrorSuffix, []byte(fmt.Sprintf("upload failed: %v\n", err)), 0o600)
			if ctx.Err() != nil {
				return domain.CodeTimeout
			}
			return domain.CodeCorrectorError
		}
	}

	if err := os.WriteFile(inv.OutputPath, []byte(acceptedMark), 0o600); err != nil {
		r.log.Error(err, "write storage output")
		return domain.CodeCorrectorError
	}
	return domain.MaxScore
}
