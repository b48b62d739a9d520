package corrector

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/grader/internal/domain"
	"github.com/go-logr/logr"
)

const dummyDefaultSleep = 5 * time.Second

// dummyRunner echoes its argument vector and sleeps. The first extra argument,
// when numeric, is the sleep in seconds.
type dummyRunner struct {
	artifacts
	log     logr.Logger
	path    string
	preArgs []string
}

func (r *dummyRunner) Exec(ctx context.Context, inv Invocation) int {
	args := append(append(append([]string{}, r.preArgs...), r.path, inv.InputPath), inv.positional()...)

	var b strings.Builder
	b.WriteString("<pre>\n")
	for i, arg := range args {
		fmt.Fprintf(&b, "%d:[%s]\n", i, arg)
	}
	b.WriteString("</pre>\n")
	if err := os.WriteFile(inv.OutputPath, []byte(b.String()), 0o600); err != nil {
		r.log.Error(err, "write dummy output")
		return domain.CodeCorrectorError
	}

	sleep := dummyDefaultSleep
	if len(inv.ExtraArgs) > 0 {
		if secs, err := strconv.ParseFloat(inv.ExtraArgs[0], 64); err == nil && secs > 0 {
			sleep = time.Duration(secs * float64(time.Second))
		}
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	deadline := time.NewTimer(inv.timeout())
	defer deadline.Stop()

	select {
	case <-timer.C:
		return domain.MaxScore
	case <-deadline.C:
		return domain.CodeTimeout
	case <-ctx.Done():
		return domain.CodeTimeout
	}
}
