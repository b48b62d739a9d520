// Package corrector runs external correctors behind a single contract: given
// a delivered file, produce a score between 0 and 100 or one of the reserved
// failure codes.
package corrector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bnema/grader/internal/domain"
	"github.com/go-logr/logr"
)

const DefaultTimeout = 60 * time.Second

// Invocation carries everything a corrector may see about one attempt.
type Invocation struct {
	InputPath  string
	OutputPath string
	UserID     string
	FileName   string
	Counter    int64
	Privileged bool
	ExtraArgs  []string
	Timeout    time.Duration
}

func (inv Invocation) timeout() time.Duration {
	if inv.Timeout <= 0 {
		return DefaultTimeout
	}
	return inv.Timeout
}

// positional returns the arguments shared by every runner kind.
func (inv Invocation) positional() []string {
	args := []string{inv.UserID, inv.FileName, strconv.FormatInt(inv.Counter, 10), strconv.FormatBool(inv.Privileged)}
	return append(args, inv.ExtraArgs...)
}

type Invoker interface {
	// Exec never returns an error: every failure is folded into a reserved
	// result code.
	Exec(ctx context.Context, inv Invocation) int
	// Clean removes the output and its diagnostics sibling. It is safe to
	// call when neither exists.
	Clean(outputPath string) error
}

// Uploader stores accepted deliveries for the storage runner.
type Uploader interface {
	Upload(ctx context.Context, objectName, path string) error
}

type Options struct {
	Log        logr.Logger
	PreArgs    []string
	HTTPClient *http.Client
	Uploader   Uploader
	// MaxResponseKB bounds how much of an HTTP corrector response is kept.
	MaxResponseKB int
}

// New resolves the tool's runner kind to its invoker.
func New(tool domain.Tool, opts Options) (Invoker, error) {
	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}
	log := opts.Log.WithValues("tool", tool.Name, "runner", tool.RunnerKind.String())

	switch tool.RunnerKind {
	case domain.RunnerLocal:
		if tool.CorrectorPath == "" {
			return nil, fmt.Errorf("tool %q has no corrector path", tool.Name)
		}
		return &localRunner{
			log:            log,
			path:           tool.CorrectorPath,
			preArgs:        opts.PreArgs,
			privilegedArgs: tool.PrivilegedArgs,
		}, nil
	case domain.RunnerHTTP:
		cfg, err := LoadHTTPConfig(tool.CorrectorPath)
		if err != nil {
			return nil, err
		}
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{CheckRedirect: noRedirects}
		}
		return &httpRunner{log: log, cfg: cfg, client: client, maxBody: maxBytes(opts.MaxResponseKB)}, nil
	case domain.RunnerStorage:
		return &storageRunner{log: log, tool: tool.Name, uploader: opts.Uploader}, nil
	case domain.RunnerDummy:
		return &dummyRunner{log: log, path: tool.CorrectorPath, preArgs: opts.PreArgs}, nil
	default:
		return nil, fmt.Errorf("tool %q: unsupported runner kind %s", tool.Name, tool.RunnerKind)
	}
}

// Normalize folds an arbitrary exit status into the closed result set.
func Normalize(code int) int {
	switch {
	case domain.IsScore(code):
		return code
	case code == domain.CodeCorrectorError, code == domain.CodeGenericFailure:
		return code
	default:
		return domain.CodeGenericFailure
	}
}

type artifacts struct{}

func (artifacts) Clean(outputPath string) error {
	return CleanOutput(outputPath)
}

// CleanOutput removes a corrector output and its diagnostics sibling.
func CleanOutput(outputPath string) error {
	if outputPath == "" {
		return nil
	}
	var errs []error
	for _, path := range []string{outputPath, outputPath + domain.ErrorSuffix} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func maxBytes(kb int) int64 {
	if kb <= 0 {
		return 1 << 20
	}
	return int64(kb) * 1024
}

func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
