package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/grader/internal/admission"
	"github.com/bnema/grader/internal/corrector"
	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/identity"
	"github.com/bnema/grader/internal/ports"
	portmocks "github.com/bnema/grader/internal/ports/mocks"
)

const testKey domain.ToolKeyID = "key-1"

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeCatalog struct {
	mu   sync.Mutex
	tool domain.Tool
}

func (c *fakeCatalog) ToolForKey(_ context.Context, key domain.ToolKeyID) (domain.Tool, domain.ToolKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key != testKey {
		return domain.Tool{}, domain.ToolKey{}, domain.ErrToolKeyNotFound
	}
	return c.tool, domain.ToolKey{ID: testKey, ToolName: c.tool.Name}, nil
}

func (c *fakeCatalog) List(context.Context) ([]domain.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []domain.Tool{c.tool}, nil
}

func (c *fakeCatalog) IncrementCounter(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != c.tool.Name {
		return 0, domain.ErrToolNotFound
	}
	c.tool.Counter++
	return c.tool.Counter, nil
}

func (c *fakeCatalog) Invalidate(string) {}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []domain.Attempt
}

func (s *fakeAttemptStore) Create(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.SerialID = int64(len(s.attempts) + 1)
	s.attempts = append(s.attempts, attempt)
	return attempt, nil
}

func (s *fakeAttemptStore) GetBySerial(_ context.Context, serial int64) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, attempt := range s.attempts {
		if attempt.SerialID == serial {
			return attempt, nil
		}
	}
	return domain.Attempt{}, domain.ErrAttemptNotFound
}

func (s *fakeAttemptStore) Find(_ context.Context, user domain.ResourceUserID, createdAt time.Time) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, attempt := range s.attempts {
		if attempt.ResourceUser.ID == user && attempt.CreatedAt.Equal(createdAt) {
			return attempt, nil
		}
	}
	return domain.Attempt{}, domain.ErrAttemptNotFound
}

func (s *fakeAttemptStore) CountAttempts(_ context.Context, filter ports.AttemptFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, attempt := range s.attempts {
		if attempt.ResourceUser.UserID != filter.UserID || attempt.ResourceUser.ToolKeyID != filter.ToolKeyID {
			continue
		}
		if filter.FileName != "" && attempt.FileName != filter.FileName {
			continue
		}
		count++
	}
	return count, nil
}

func (s *fakeAttemptStore) ListByToolKey(_ context.Context, key domain.ToolKeyID) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if key == "" || attempt.ResourceUser.ToolKeyID == key {
			out = append(out, attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialID < out[j].SerialID })
	return out, nil
}

func (s *fakeAttemptStore) all() []domain.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Attempt(nil), s.attempts...)
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]domain.LaunchContext
}

func (s *fakeSessions) Get(_ context.Context, id domain.SessionID) (domain.LaunchContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	launch, ok := s.sessions[id]
	if !ok {
		return domain.LaunchContext{}, domain.ErrSessionNotFound
	}
	return launch, nil
}

func (s *fakeSessions) Put(_ context.Context, launch domain.LaunchContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[launch.SessionID] = launch
	return nil
}

func (s *fakeSessions) Delete(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type fakeInvoker struct {
	mu     sync.Mutex
	code   int
	output string
	panics bool
	calls  []corrector.Invocation
	// gate, when set, holds every run until it is closed.
	gate chan struct{}
}

func (f *fakeInvoker) Exec(_ context.Context, inv corrector.Invocation) int {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	if f.panics {
		panic("corrector crashed")
	}
	if f.output != "" {
		_ = os.WriteFile(inv.OutputPath, []byte(f.output), 0o600)
	}
	return f.code
}

func (f *fakeInvoker) Clean(outputPath string) error {
	return corrector.CleanOutput(outputPath)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeInvoker) lastCall() corrector.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type sliceParts struct {
	parts []Part
}

func (p *sliceParts) NextPart() (Part, error) {
	if len(p.parts) == 0 {
		return Part{}, io.EOF
	}
	next := p.parts[0]
	p.parts = p.parts[1:]
	return next, nil
}

func field(name, value string) Part {
	return Part{Name: name, Body: strings.NewReader(value)}
}

func upload(fileName, body string) Part {
	return Part{Name: PartFile, FileName: fileName, Body: strings.NewReader(body)}
}

type harness struct {
	svc        *AssessmentService
	catalog    *fakeCatalog
	store      *fakeAttemptStore
	sessions   *fakeSessions
	notifier   *portmocks.MockOutcomeNotifier
	controller *admission.Controller
	invoker    *fakeInvoker
	clock      *tickingClock
	dataDir    string
}

func newHarness(t *testing.T, mutate func(*domain.Tool)) *harness {
	t.Helper()

	dataDir := t.TempDir()
	tool := domain.Tool{
		Name:       "c-intro",
		DataDir:    dataDir,
		RunnerKind: domain.RunnerLocal,
		Enabled:    true,
		Outcome:    true,
		Config: domain.ToolConfig{
			KeepFiles:        true,
			KeepOutput:       true,
			ManageAttempts:   true,
			InputFilePattern: `.*\.c`,
		},
	}
	if mutate != nil {
		mutate(&tool)
	}

	codec, err := identity.NewCodec(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	receipts, err := identity.NewReceipts("grader-tests")
	require.NoError(t, err)

	h := &harness{
		catalog:    &fakeCatalog{tool: tool},
		store:      &fakeAttemptStore{},
		sessions:   &fakeSessions{sessions: map[domain.SessionID]domain.LaunchContext{}},
		notifier:   portmocks.NewMockOutcomeNotifier(t),
		controller: admission.NewController(0),
		invoker:    &fakeInvoker{code: 45, output: "all tests passed\n"},
		clock:      &tickingClock{now: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)},
		dataDir:    dataDir,
	}

	h.svc, err = NewAssessmentService(Dependencies{
		Catalog:   h.catalog,
		Attempts:  h.store,
		Sessions:  h.sessions,
		Notifier:  h.notifier,
		Admission: h.controller,
		Codec:     codec,
		Receipts:  receipts,
		Invokers: func(domain.Tool) (corrector.Invoker, error) {
			return h.invoker, nil
		},
		Clock: h.clock,
		Log:   logr.Discard(),
	}, Settings{MaxUploadKB: 4})
	require.NoError(t, err)

	return h
}

func resourceUser(userID string) domain.ResourceUser {
	return domain.ResourceUser{
		ID:             domain.ResourceUserID("ru-" + userID),
		UserID:         userID,
		ToolName:       "c-intro",
		ToolKeyID:      testKey,
		ResourceLinkID: "link-1",
		ContextID:      "course-1",
	}
}

func (h *harness) open(t *testing.T, userID string, privileged, outcomeAllowed bool) domain.LaunchContext {
	t.Helper()
	launch := domain.LaunchContext{
		SessionID:      domain.SessionID("session-" + userID),
		LaunchID:       "launch-" + userID,
		ToolKeyID:      testKey,
		ResourceUser:   resourceUser(userID),
		Privileged:     privileged,
		OutcomeAllowed: outcomeAllowed,
	}
	require.NoError(t, h.sessions.Put(context.Background(), launch))
	return launch
}

func (h *harness) deliver(launch domain.LaunchContext, parts ...Part) (AssessmentResult, error) {
	all := append([]Part{field(PartLaunchID, launch.LaunchID)}, parts...)
	return h.svc.Assess(context.Background(), AssessCommand{SessionID: launch.SessionID, Parts: &sliceParts{parts: all}})
}

func TestAssessGradesAndWritesOutcome(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "alice", false, true)
	h.notifier.EXPECT().WriteOutcome(mock.Anything, launch.ResourceUser, testKey, 45).Return(nil).Once()

	result, err := h.deliver(launch, upload("main.c", "int main(){}"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeOKWithOutcome, result.Kind)
	assert.Equal(t, 45, result.Code)
	assert.Equal(t, "4.5", result.Score)
	assert.Equal(t, "all tests passed\n", result.Output)
	assert.NotEmpty(t, result.Receipt)
	assert.False(t, result.Test)

	stored := h.store.all()
	require.Len(t, stored, 1)
	assert.Equal(t, 45, stored[0].Score)
	assert.Equal(t, domain.ErrorCodeWithOutcome, stored[0].ErrorCode)
	assert.True(t, stored[0].FileSaved)
	assert.True(t, stored[0].OutputSaved)
	assert.FileExists(t, stored[0].FilePath(h.dataDir))

	resolved, err := h.svc.ResolveReference(context.Background(), result.Reference, testKey)
	require.NoError(t, err)
	assert.Equal(t, stored[0].SerialID, resolved.SerialID)

	call := h.invoker.lastCall()
	assert.Equal(t, "alice", call.UserID)
	assert.Equal(t, "main.c", call.FileName)
	assert.Equal(t, int64(1), call.Counter)
	assert.Equal(t, stored[0].OutputPath(h.dataDir), call.OutputPath)

	assert.Zero(t, h.controller.Snapshot().Global)
}

func TestAssessRejectsWrongLaunchBeforeAdmission(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "alice", false, true)

	_, err := h.svc.Assess(context.Background(), AssessCommand{
		SessionID: launch.SessionID,
		Parts:     &sliceParts{parts: []Part{field(PartLaunchID, "replayed"), upload("main.c", "x")}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidLaunch)

	_, err = h.svc.Assess(context.Background(), AssessCommand{
		SessionID: launch.SessionID,
		Parts:     &sliceParts{parts: []Part{upload("main.c", "x")}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidLaunch)

	_, err = h.svc.Assess(context.Background(), AssessCommand{SessionID: "unknown", Parts: &sliceParts{}})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.Zero(t, h.invoker.callCount())
	assert.Empty(t, h.store.all())
}

func TestAssessInstructorRunIsATest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "teacher", true, true)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
	assert.True(t, result.Test)
	assert.Equal(t, "(TEST) Score: 4.5", result.Message)
	assert.Equal(t, domain.ErrorCodeNoOutcome, h.store.all()[0].ErrorCode)
	assert.True(t, h.invoker.lastCall().Privileged)
}

func TestAssessWithoutOutcomeStoresScore(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "alice", false, false)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
	assert.False(t, result.Test)
	assert.Equal(t, 45, h.store.all()[0].Score)
}

func TestAssessWriteOutcomeFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "alice", false, true)
	h.notifier.EXPECT().WriteOutcome(mock.Anything, mock.Anything, testKey, 45).Return(errors.New("platform down")).Once()

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeWriteOutcomeFailed, result.Kind)
	assert.Equal(t, "4.5", result.Score)
	assert.Equal(t, domain.CodeWriteOutcomeFailed, h.store.all()[0].ErrorCode)
}

func TestAssessUnknownCodeIsGenericFailureAndPurgesArtifacts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.invoker.code = 150
	launch := h.open(t, "alice", false, true)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeGenericFailure, result.Kind)
	assert.Empty(t, result.Score)
	assert.Equal(t, "all tests passed\n", result.Output)

	stored := h.store.all()[0]
	assert.Equal(t, 150, stored.ErrorCode)
	assert.False(t, stored.FileSaved)
	assert.False(t, stored.OutputSaved)
	assert.NoFileExists(t, stored.FilePath(h.dataDir))
	assert.NoFileExists(t, stored.OutputPath(h.dataDir))
}

func TestAssessReservedFailureCodes(t *testing.T) {
	t.Parallel()

	for code, kind := range map[int]domain.OutcomeKind{
		domain.CodeCorrectorError: domain.OutcomeFatalCorrector,
		domain.CodeRunnerError:    domain.OutcomeFatalRunner,
		domain.CodeTimeout:        domain.OutcomeTimeout,
	} {
		h := newHarness(t, nil)
		h.invoker.code = code
		launch := h.open(t, "alice", false, true)

		result, err := h.deliver(launch, upload("main.c", "x"))
		require.NoError(t, err)
		assert.Equal(t, kind, result.Kind)
		assert.Equal(t, code, h.store.all()[0].ErrorCode)
	}
}

func TestAssessToolCapacityRejectsThenAdmitsAfterRelease(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(tool *domain.Tool) {
		tool.Outcome = false
		tool.Config.MaxConcurrentUsers = 1
	})
	launch := h.open(t, "alice", false, false)

	decision, err := h.controller.TryAcquire("c-intro", 1, "bob")
	require.NoError(t, err)
	require.Equal(t, admission.Granted, decision)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, result.Kind)
	assert.Zero(t, h.invoker.callCount())

	h.controller.Release("c-intro", "bob")

	result, err = h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
}

func TestAssessConcurrentDeliveriesAdmitOnePerToolSlot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(tool *domain.Tool) {
		tool.Outcome = false
		tool.Config.MaxConcurrentUsers = 1
	})
	h.invoker.gate = make(chan struct{})

	users := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	launches := make([]domain.LaunchContext, 0, len(users))
	for _, user := range users {
		launches = append(launches, h.open(t, user, false, false))
	}

	results := make(chan AssessmentResult, len(users))
	for _, launch := range launches {
		go func() {
			result, err := h.deliver(launch, upload("main.c", "int main(){}"))
			assert.NoError(t, err)
			results <- result
		}()
	}

	timeout := time.After(10 * time.Second)
	for range len(users) - 1 {
		select {
		case result := <-results:
			assert.Equal(t, domain.OutcomeRejected, result.Kind)
		case <-timeout:
			require.FailNow(t, "rejected deliveries did not return")
		}
	}

	stats := h.controller.Snapshot()
	assert.Equal(t, 1, stats.Global)
	assert.Equal(t, 1, stats.PerTool["c-intro"])

	close(h.invoker.gate)
	select {
	case result := <-results:
		assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
	case <-timeout:
		require.FailNow(t, "admitted delivery did not return")
	}

	assert.Equal(t, 1, h.invoker.callCount())
	assert.Equal(t, 0, h.controller.Snapshot().Global)
	assert.Len(t, h.store.all(), 1)
}

func TestAssessDegradedNearDeadlineStoresWithoutGrading(t *testing.T) {
	t.Parallel()

	until := time.Date(2026, 3, 9, 10, 0, 5, 0, time.UTC)
	h := newHarness(t, func(tool *domain.Tool) {
		tool.EnabledUntil = &until
		tool.Config.MaxConcurrentUsers = 1
	})
	launch := h.open(t, "alice", false, true)

	_, err := h.controller.TryAcquire("c-intro", 1, "bob")
	require.NoError(t, err)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeDegradedDeferred, result.Kind)
	assert.Equal(t, domain.CodeDegradedDeferred, result.Code)
	assert.NotEmpty(t, result.AttemptID)
	assert.NotEmpty(t, result.Receipt)
	assert.Zero(t, h.invoker.callCount())

	stored := h.store.all()[0]
	assert.Equal(t, domain.CodeDegradedDeferred, stored.ErrorCode)
	assert.True(t, stored.FileSaved)
	assert.False(t, stored.OutputSaved)
	assert.FileExists(t, stored.FilePath(h.dataDir))

	assert.Equal(t, 1, h.controller.Snapshot().Global)
}

func TestAssessDeliveryRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*domain.Tool)
		parts  []Part
		want   error
	}{
		{
			name:   "wrong password",
			mutate: func(tool *domain.Tool) { tool.DeliveryPassword = "s3cret" },
			parts:  []Part{field(PartPassword, "guess"), upload("main.c", "x")},
			want:   domain.ErrWrongPassword,
		},
		{
			name:   "missing password",
			mutate: func(tool *domain.Tool) { tool.DeliveryPassword = "s3cret" },
			parts:  []Part{upload("main.c", "x")},
			want:   domain.ErrWrongPassword,
		},
		{
			name:  "bad file name",
			parts: []Part{upload("main.py", "x")},
			want:  domain.ErrInvalidFileName,
		},
		{
			name:  "too large",
			parts: []Part{upload("main.c", strings.Repeat("x", 5*1024))},
			want:  domain.ErrFileTooLarge,
		},
		{
			name:  "no file",
			parts: nil,
			want:  domain.ErrMissingPart,
		},
		{
			name:  "unexpected part",
			parts: []Part{field("comment", "hi")},
			want:  domain.ErrUnexpectedPart,
		},
		{
			name:  "learner reassessment",
			parts: []Part{field(PartSID, "anything")},
			want:  domain.ErrNotPrivileged,
		},
		{
			name:   "disabled tool",
			mutate: func(tool *domain.Tool) { tool.Enabled = false },
			parts:  []Part{upload("main.c", "x")},
			want:   domain.ErrToolDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.mutate)
			launch := h.open(t, "alice", false, true)

			result, err := h.deliver(launch, tt.parts...)
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeRejected, result.Kind)
			assert.ErrorIs(t, result.Err, tt.want)
			assert.NotEmpty(t, result.Message)
			assert.Zero(t, h.invoker.callCount())
			assert.Empty(t, h.store.all())

			entries, _ := os.ReadDir(filepath.Join(h.dataDir, "alice"))
			assert.Empty(t, entries)
			assert.Zero(t, h.controller.Snapshot().Global)
		})
	}
}

func TestAssessPasswordAccepted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(tool *domain.Tool) { tool.DeliveryPassword = "s3cret" })
	launch := h.open(t, "alice", false, false)

	result, err := h.deliver(launch, field(PartPassword, "s3cret"), upload("main.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
}

func TestAssessMaxAttempts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(tool *domain.Tool) {
		tool.Config.MaxAttempts = 1
		tool.Config.MaxAttemptsPerFileName = true
	})
	launch := h.open(t, "alice", false, false)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)

	result, err = h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, result.Kind)
	assert.ErrorIs(t, result.Err, domain.ErrTooManyAttempts)

	result, err = h.deliver(launch, upload("other.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
}

func TestAssessZeroMaxAttemptsIsUnlimited(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(tool *domain.Tool) {
		tool.Config.MaxAttempts = 0
	})
	launch := h.open(t, "alice", false, false)

	for range 3 {
		result, err := h.deliver(launch, upload("main.c", "x"))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeOKNoOutcome, result.Kind)
	}
	assert.Len(t, h.store.all(), 3)
}

func TestAssessReassessmentCreditsInstructorOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	learner := h.open(t, "alice", false, false)
	instructor := h.open(t, "teacher", true, false)

	original, err := h.deliver(learner, upload("main.c", "x"))
	require.NoError(t, err)
	require.NotEmpty(t, original.Reference)
	originalPath := original.Attempt.FilePath(h.dataDir)

	h.invoker.code = 150
	sid := field(PartSID, url.QueryEscape(original.Reference))
	result, err := h.deliver(instructor, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGenericFailure, result.Kind)

	call := h.invoker.lastCall()
	assert.Equal(t, originalPath, call.InputPath)
	assert.Equal(t, filepath.Join(h.dataDir, "teacher"), filepath.Dir(call.OutputPath))
	assert.FileExists(t, originalPath)

	stored := h.store.all()
	require.Len(t, stored, 2)
	assert.Equal(t, "teacher", stored[1].ResourceUser.UserID)
	assert.Equal(t, "alice", stored[1].OriginalResourceUser.UserID)
	assert.True(t, stored[1].CreatedAt.Equal(original.Attempt.CreatedAt))
	assert.False(t, stored[1].FileSaved)

	_, err = h.deliver(instructor, field(PartSID, url.QueryEscape(original.Reference)))
	require.NoError(t, err)
	assert.Len(t, h.store.all(), 2)
}

func TestAssessReassessmentOfDeletedFileAbortsBeforeCorrector(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	learner := h.open(t, "alice", false, false)
	instructor := h.open(t, "teacher", true, false)

	original, err := h.deliver(learner, upload("main.c", "x"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(original.Attempt.FilePath(h.dataDir)))

	result, err := h.deliver(instructor, field(PartSID, original.Reference))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, result.Kind)
	assert.ErrorIs(t, result.Err, domain.ErrMissingFile)
	assert.Equal(t, 1, h.invoker.callCount())
	assert.Len(t, h.store.all(), 1)
}

func TestAssessReassessmentRejectsForeignReference(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	instructor := h.open(t, "teacher", true, false)

	result, err := h.deliver(instructor, field(PartSID, "not-a-reference"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, result.Kind)
	assert.ErrorIs(t, result.Err, identity.ErrInvalidReference)
}

func TestAssessReleasesAdmissionWhenCorrectorPanics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.invoker.panics = true
	launch := h.open(t, "alice", false, false)

	assert.Panics(t, func() {
		_, _ = h.deliver(launch, upload("main.c", "x"))
	})
	assert.Zero(t, h.controller.Snapshot().Global)
}

func TestAssessConcurrentConflict(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "alice", false, false)

	_, err := h.controller.TryAcquire("c-intro", 0, "alice")
	require.NoError(t, err)

	result, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConcurrentConflict, result.Kind)
	assert.ErrorIs(t, result.Err, admission.ErrConcurrentConflict)
	assert.Equal(t, 1, h.controller.Snapshot().Global)
}

func TestListAttemptsAddsReferences(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	launch := h.open(t, "alice", false, false)
	_, err := h.deliver(launch, upload("main.c", "x"))
	require.NoError(t, err)

	views, err := h.svc.ListAttempts(context.Background(), testKey)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "4.5", views[0].Score)
	assert.NotEmpty(t, views[0].Receipt)

	token, attempt, err := h.svc.MintReference(context.Background(), views[0].Attempt.SerialID)
	require.NoError(t, err)
	assert.Equal(t, views[0].Attempt.SerialID, attempt.SerialID)

	resolved, err := h.svc.ResolveReference(context.Background(), views[0].Reference, testKey)
	require.NoError(t, err)
	assert.Equal(t, attempt.SerialID, resolved.SerialID)

	_, err = h.svc.ResolveReference(context.Background(), token, "key-2")
	require.ErrorIs(t, err, identity.ErrInvalidReference)
}

func TestExpandExtraArgs(t *testing.T) {
	t.Parallel()

	tool := domain.Tool{Name: "c-intro", ExtraArgs: []string{" --user=${user_id} ", "${custom_args}", "${tool}/${context_id}/${resource_link_id}"}}
	launch := domain.LaunchContext{
		ResourceUser: resourceUser("alice"),
		CustomArgs:   []string{"-O2", " ", "--fast"},
	}

	assert.Equal(t, []string{"--user=alice", "-O2", "--fast", "c-intro/course-1/link-1"}, expandExtraArgs(tool, launch))
	assert.Nil(t, expandExtraArgs(domain.Tool{}, launch))
}
