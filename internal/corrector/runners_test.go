package corrector

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bnema/grader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	objects []string
	err     error
}

func (u *recordingUploader) Upload(_ context.Context, objectName, path string) error {
	if u.err != nil {
		return u.err
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	u.objects = append(u.objects, objectName)
	return nil
}

func TestStorageRunnerAcceptsAndUploads(t *testing.T) {
	t.Parallel()

	uploader := &recordingUploader{}
	runner, err := New(domain.Tool{Name: "portfolio", RunnerKind: domain.RunnerStorage}, Options{Uploader: uploader})
	require.NoError(t, err)
	inv := newInvocation(t)

	assert.Equal(t, 100, runner.Exec(context.Background(), inv))
	output, err := os.ReadFile(inv.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "✓\n", string(output))
	require.Len(t, uploader.objects, 1)
	assert.Contains(t, uploader.objects[0], "portfolio/")
}

func TestStorageRunnerUploadFailure(t *testing.T) {
	t.Parallel()

	runner, err := New(domain.Tool{Name: "portfolio", RunnerKind: domain.RunnerStorage}, Options{
		Uploader: &recordingUploader{err: errors.New("bucket gone")},
	})
	require.NoError(t, err)
	inv := newInvocation(t)

	assert.Equal(t, domain.CodeCorrectorError, runner.Exec(context.Background(), inv))
	assert.FileExists(t, inv.OutputPath+domain.ErrorSuffix)
}

func TestStorageRunnerWithoutUploader(t *testing.T) {
	t.Parallel()

	runner, err := New(domain.Tool{Name: "portfolio", RunnerKind: domain.RunnerStorage}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 100, runner.Exec(context.Background(), newInvocation(t)))
}

func TestDummyRunnerEchoesArgsAndSleeps(t *testing.T) {
	t.Parallel()

	runner, err := New(domain.Tool{Name: "demo", RunnerKind: domain.RunnerDummy, CorrectorPath: "/bin/demo"}, Options{})
	require.NoError(t, err)
	inv := newInvocation(t)
	inv.ExtraArgs = []string{"0.05"}

	assert.Equal(t, 100, runner.Exec(context.Background(), inv))
	output, err := os.ReadFile(inv.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(output), "0:[/bin/demo]")
	assert.Contains(t, string(output), "2:[alice]")
}

func TestDummyRunnerTimesOut(t *testing.T) {
	t.Parallel()

	runner, err := New(domain.Tool{Name: "demo", RunnerKind: domain.RunnerDummy}, Options{})
	require.NoError(t, err)
	inv := newInvocation(t)
	inv.ExtraArgs = []string{"10"}
	inv.Timeout = 50 * time.Millisecond

	assert.Equal(t, domain.CodeTimeout, runner.Exec(context.Background(), inv))
}

func TestExpandRequest(t *testing.T) {
	t.Parallel()

	args := []string{"alice smith", "main.c"}
	assert.Equal(t, "/u/alice smith/main.c", expandRequest("/u/${0}/${1}", args))
	assert.Equal(t, "/u/alice+smith", expandRequest("/u/${%0}", args))
	assert.Equal(t, "x", expandRequest("x${9}${nope}", args))
}

func TestExpandResponse(t *testing.T) {
	t.Parallel()

	values := responseValues{
		body:    `{"a":{"b":3},"list":[1,2],"enc":"x%20y"}`,
		headers: map[string]string{"x-run": "7"},
		json:    true,
	}

	assert.Equal(t, "3", expandResponse("${j.a.b}", values))
	assert.Equal(t, "[1,2]", expandResponse("${j.list}", values))
	assert.Equal(t, "7", expandResponse("${h.X-Run}", values))
	assert.Equal(t, "x y", expandResponse("${%j.enc}", values))
	assert.Equal(t, "", expandResponse("${j.missing}", values))

	values.json = false
	assert.Equal(t, "", expandResponse("${j.a.b}", values))
}
