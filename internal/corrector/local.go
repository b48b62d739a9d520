package corrector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/bnema/grader/internal/domain"
	"github.com/go-logr/logr"
)

const privilegedEnv = "GRADER_PRIVILEGED"

// localRunner executes the corrector as a child process in its own process
// group. Standard output goes to the output file, standard error to its
// .error sibling.
type localRunner struct {
	artifacts
	log            logr.Logger
	path           string
	preArgs        []string
	privilegedArgs []string
}

func (r *localRunner) args(inv Invocation) []string {
	args := make([]string, 0, len(r.preArgs)+len(r.privilegedArgs)+len(inv.ExtraArgs)+7)
	args = append(args, r.preArgs...)
	args = append(args, r.path)
	if inv.Privileged {
		args = append(args, r.privilegedArgs...)
	}
	args = append(args, inv.InputPath, inv.OutputPath, inv.UserID, inv.FileName, strconv.FormatInt(inv.Counter, 10))
	return append(args, inv.ExtraArgs...)
}

func (r *localRunner) Exec(ctx context.Context, inv Invocation) int {
	args := r.args(inv)

	stdout, err := os.Create(inv.OutputPath)
	if err != nil {
		r.log.Error(err, "create corrector output")
		return domain.CodeRunnerError
	}
	defer stdout.Close()

	stderr, err := os.Create(inv.OutputPath + domain.ErrorSuffix)
	if err != nil {
		r.log.Error(err, "create corrector error output")
		return domain.CodeRunnerError
	}
	defer stderr.Close()

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), privilegedEnv+"="+strconv.FormatBool(inv.Privileged))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Own process group so a timeout kills everything the corrector spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		r.log.Error(err, "start corrector", "path", args[0])
		return domain.CodeRunnerError
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(inv.timeout())
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		r.kill(cmd)
		<-done
		r.log.Info("corrector timed out", "timeout", inv.timeout().String())
		return domain.CodeTimeout
	case <-ctx.Done():
		r.kill(cmd)
		<-done
		r.log.Info("corrector cancelled", "reason", ctx.Err().Error())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.CodeTimeout
		}
		return domain.CodeRunnerError
	}

	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		r.log.Error(err, "wait for corrector")
		return domain.CodeRunnerError
	}
	if exitErr.ExitCode() < 0 {
		r.log.Info("corrector terminated by signal", "state", exitErr.String())
		return domain.CodeCorrectorError
	}

	return Normalize(exitErr.ExitCode())
}

func (r *localRunner) kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.log.Error(fmt.Errorf("kill process group %d: %w", cmd.Process.Pid, err), "kill corrector")
	}
}
