package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bnema/grader/internal/admission"
	"github.com/bnema/grader/internal/corrector"
	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/identity"
	"github.com/bnema/grader/internal/observability"
	"github.com/bnema/grader/internal/ports"
	"github.com/bnema/grader/internal/retention"
)

// InvokerFactory resolves a tool snapshot to the corrector that grades it.
type InvokerFactory func(tool domain.Tool) (corrector.Invoker, error)

type Dependencies struct {
	Catalog   ports.ToolCatalog
	Attempts  ports.AttemptStore
	Sessions  ports.LaunchSessions
	Notifier  ports.OutcomeNotifier
	Admission *admission.Controller
	Codec     *identity.Codec
	Receipts  *identity.Receipts
	Invokers  InvokerFactory
	Clock     ports.Clock
	Log       logr.Logger
}

// AssessmentService runs one delivery from admission to release.
type AssessmentService struct {
	catalog   ports.ToolCatalog
	attempts  ports.AttemptStore
	sessions  ports.LaunchSessions
	notifier  ports.OutcomeNotifier
	admission *admission.Controller
	codec     *identity.Codec
	receipts  *identity.Receipts
	invokers  InvokerFactory
	clock     ports.Clock
	log       logr.Logger
	settings  Settings
}

func NewAssessmentService(deps Dependencies, settings Settings) (*AssessmentService, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("assessment service requires a tool catalog")
	case deps.Attempts == nil:
		return nil, errors.New("assessment service requires an attempt store")
	case deps.Sessions == nil:
		return nil, errors.New("assessment service requires launch sessions")
	case deps.Admission == nil:
		return nil, errors.New("assessment service requires an admission controller")
	case deps.Codec == nil:
		return nil, errors.New("assessment service requires a reference codec")
	}

	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Log.GetSink() == nil {
		deps.Log = logr.Discard()
	}
	if deps.Invokers == nil {
		log := deps.Log
		deps.Invokers = func(tool domain.Tool) (corrector.Invoker, error) {
			return corrector.New(tool, corrector.Options{Log: log})
		}
	}

	return &AssessmentService{
		catalog:   deps.Catalog,
		attempts:  deps.Attempts,
		sessions:  deps.Sessions,
		notifier:  deps.Notifier,
		admission: deps.Admission,
		codec:     deps.Codec,
		receipts:  deps.Receipts,
		invokers:  deps.Invokers,
		clock:     deps.Clock,
		log:       deps.Log.WithName("assessment"),
		settings:  settings.withDefaults(),
	}, nil
}

// assessment is the request-local state of one delivery.
type assessment struct {
	log      logr.Logger
	launch   domain.LaunchContext
	tool     domain.Tool
	key      domain.ToolKey
	dataDir  string
	degraded bool

	attempt    domain.Attempt
	filePath   string
	outputPath string
	ownsFile   bool
	reassess   bool
	output     string
}

// Assess validates a delivery against its launch session, admits it, grades
// it and persists the attempt. The returned error is reserved for requests
// that must abort without a classified outcome.
func (s *AssessmentService) Assess(ctx context.Context, cmd AssessCommand) (AssessmentResult, error) {
	requestID := nuid.Next()
	log := s.log.WithValues("request", requestID)

	launch, err := s.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		return AssessmentResult{}, fmt.Errorf("load launch session: %w", err)
	}

	tool, key, err := s.catalog.ToolForKey(ctx, launch.ToolKeyID)
	if err != nil {
		return AssessmentResult{}, fmt.Errorf("resolve tool: %w", err)
	}

	ctx, span := observability.StartSpan(ctx, "grader.assess",
		attribute.String("grader.tool", tool.Name),
		attribute.String("grader.request", requestID),
	)
	defer span.End()

	log = log.WithValues("tool", tool.Name, "user", launch.ResourceUser.UserID)

	if err := s.checkLaunch(cmd.Parts, launch); err != nil {
		log.Info("delivery does not match launch session")
		span.SetStatus(codes.Error, "invalid launch")
		return AssessmentResult{}, err
	}

	now := s.clock.Now()
	if !launch.Privileged && !tool.EnabledAt(now, s.settings.GracePeriod) {
		log.Info("tool is disabled")
		return s.reject(tool, domain.ErrToolDisabled, msgToolDisabled), nil
	}

	a := &assessment{
		log:      log,
		launch:   launch,
		tool:     tool,
		key:      key,
		dataDir:  s.dataDir(tool),
		attempt:  domain.NewAttempt(launch.ResourceUser, "", now),
		ownsFile: true,
	}

	decision, err := s.admit(a, now)
	if err != nil {
		log.Error(err, "admission token already held")
		observability.RecordOutcome(tool.Name, domain.OutcomeConcurrentConflict.String())
		return AssessmentResult{
			Kind:    domain.OutcomeConcurrentConflict,
			Message: msgConcurrentConflict,
			Err:     err,
		}, nil
	}
	if !decision.Admitted() {
		log.Info("admission rejected", "decision", decision.String())
		return s.reject(tool, nil, msgCapacity), nil
	}
	defer s.admission.Release(tool.Name, launch.ResourceUser.UserID)

	span.SetAttributes(attribute.Bool("grader.degraded", a.degraded))

	if rejection := s.receive(ctx, a, cmd.Parts); rejection != nil {
		log.Info("delivery rejected", "reason", rejection.Err)
		return *rejection, nil
	}

	code := s.grade(ctx, a)
	result := s.classify(ctx, a, code)

	if err := s.persist(ctx, a); err != nil {
		span.SetStatus(codes.Error, "persist attempt")
		return result, fmt.Errorf("persist attempt: %w", err)
	}
	result.Attempt = a.attempt

	if a.attempt.SerialID > 0 {
		reference, err := s.codec.Mint(a.attempt, key.ID)
		if err != nil {
			log.Error(err, "mint attempt reference")
		}
		result.Reference = reference
		result.Receipt = s.receipt(a.attempt.SerialID)
	}

	observability.RecordOutcome(tool.Name, result.Kind.String())
	log.Info("assessment finished", "kind", result.Kind.String(), "code", result.Code, "serial", a.attempt.SerialID)

	return result, nil
}

// admit takes an admission token, falling back to a degraded admission when
// the tool is full shortly before its deadline.
func (s *AssessmentService) admit(a *assessment, now time.Time) (admission.Decision, error) {
	tool := a.tool
	user := a.launch.ResourceUser.UserID

	decision, err := s.admission.TryAcquire(tool.Name, tool.Config.MaxConcurrentUsers, user)
	if err != nil || decision != admission.RejectedTool {
		return decision, err
	}

	if !tool.Config.KeepFiles || tool.EnabledUntil == nil || tool.Config.MaxConcurrentUsers <= 0 {
		return decision, nil
	}
	if !tool.NearDeadline(now, s.settings.DegradedWindow) || !s.admission.GlobalHasRoom() {
		return decision, nil
	}

	decision, err = s.admission.TryAcquireDegraded(tool.Name, user)
	if err == nil && decision == admission.GrantedDegraded {
		a.degraded = true
		a.log.Info("tool at capacity near deadline, storing without grading")
	}
	return decision, err
}

func (s *AssessmentService) grade(ctx context.Context, a *assessment) int {
	if a.degraded {
		return domain.CodeDegradedDeferred
	}

	invoker, err := s.invokers(a.tool)
	if err != nil {
		a.log.Error(err, "resolve corrector")
		s.enforceRetention(a, domain.CodeRunnerError, retention.CleanerFunc(corrector.CleanOutput))
		return domain.CodeRunnerError
	}

	counter, err := s.catalog.IncrementCounter(ctx, a.tool.Name)
	if err != nil {
		a.log.Error(err, "increment tool counter")
		counter = a.tool.Counter + 1
	}

	ctx, span := observability.StartSpan(ctx, "grader.corrector",
		attribute.String("grader.runner", a.tool.RunnerKind.String()),
		attribute.Int64("grader.counter", counter),
	)
	started := time.Now()

	code := invoker.Exec(ctx, corrector.Invocation{
		InputPath:  a.filePath,
		OutputPath: a.outputPath,
		UserID:     a.launch.ResourceUser.UserID,
		FileName:   a.attempt.FileName,
		Counter:    counter,
		Privileged: a.launch.Privileged,
		ExtraArgs:  expandExtraArgs(a.tool, a.launch),
		Timeout:    s.settings.CorrectorTimeout,
	})

	elapsed := time.Since(started)
	observability.RecordCorrectorDuration(a.tool.RunnerKind.String(), elapsed)
	span.SetAttributes(attribute.Int("grader.code", code))
	span.End()

	a.log.Info("corrector finished", "counter", counter, "code", code, "elapsed", elapsed)

	a.output = s.readOutput(a.outputPath)
	s.enforceRetention(a, code, invoker)
	return code
}

func (s *AssessmentService) enforceRetention(a *assessment, code int, cleaner retention.OutputCleaner) {
	decision := retention.Apply(retention.FlagsFor(a.tool), retention.Outcome{
		Command: a.launch.Privileged && a.tool.IsCommandFile(a.attempt.FileName),
		Code:    code,
	})
	retention.Enforce(a.log, &a.attempt, retention.Artifacts{
		FilePath:   a.filePath,
		OutputPath: a.outputPath,
		OwnsFile:   a.ownsFile,
	}, decision, cleaner)
}

// classify maps a result code to the outcome shown to the caller and stored
// on the attempt. Scores are reported upstream here, so the stored error code
// reflects whether that write succeeded.
func (s *AssessmentService) classify(ctx context.Context, a *assessment, code int) AssessmentResult {
	result := AssessmentResult{Code: code, Output: a.output}

	switch {
	case a.degraded:
		a.attempt.ErrorCode = domain.CodeDegradedDeferred
		a.attempt.FileSaved = true
		a.attempt.OutputSaved = false
		result.Kind = domain.OutcomeDegradedDeferred
		result.AttemptID = a.attempt.StorageID()
		result.Message = msgDegraded
		return result
	case code > domain.MaxScore || code < 0:
		a.attempt.ErrorCode = code
		result.Kind = domain.FailureKind(code)
		result.Message = failureMessage(result.Kind, code)
		return result
	}

	a.attempt.Score = code
	result.Score = domain.DisplayScore(code)

	if !a.launch.OutcomeAllowed || !a.tool.Outcome {
		a.attempt.ErrorCode = domain.ErrorCodeNoOutcome
		result.Kind = domain.OutcomeOKNoOutcome
		result.Message = scoreMessage(result.Score, false)
		return result
	}

	if a.launch.Privileged {
		a.attempt.ErrorCode = domain.ErrorCodeNoOutcome
		result.Kind = domain.OutcomeOKNoOutcome
		result.Test = true
		result.Message = scoreMessage(result.Score, true)
		return result
	}

	if err := s.writeOutcome(ctx, a, code); err != nil {
		a.log.Error(err, "write outcome")
		a.attempt.ErrorCode = domain.CodeWriteOutcomeFailed
		result.Kind = domain.OutcomeWriteOutcomeFailed
		result.Message = msgWriteOutcome
		result.Err = err
		return result
	}

	a.attempt.ErrorCode = domain.ErrorCodeWithOutcome
	result.Kind = domain.OutcomeOKWithOutcome
	result.Message = scoreMessage(result.Score, false)
	return result
}

func (s *AssessmentService) writeOutcome(ctx context.Context, a *assessment, code int) error {
	if s.notifier == nil {
		return errors.New("no outcome notifier configured")
	}
	return s.notifier.WriteOutcome(ctx, a.launch.ResourceUser, a.key.ID, code)
}

// persist creates the attempt record. A reassessment is recorded only under
// a different resource user, and only once per original delivery.
func (s *AssessmentService) persist(ctx context.Context, a *assessment) error {
	if a.reassess {
		if !a.attempt.IsReassessment() {
			return nil
		}
		existing, err := s.attempts.Find(ctx, a.attempt.ResourceUser.ID, a.attempt.CreatedAt)
		switch {
		case err == nil:
			a.log.V(1).Info("reassessment already recorded", "serial", existing.SerialID)
			return nil
		case !errors.Is(err, domain.ErrAttemptNotFound):
			return fmt.Errorf("find reassessment: %w", err)
		}
	}

	stored, err := s.attempts.Create(ctx, a.attempt)
	if err != nil {
		return err
	}
	a.attempt = stored
	return nil
}

func (s *AssessmentService) reject(tool domain.Tool, reason error, message string) AssessmentResult {
	observability.RecordOutcome(tool.Name, domain.OutcomeRejected.String())
	return AssessmentResult{Kind: domain.OutcomeRejected, Message: message, Err: reason}
}

func (s *AssessmentService) receipt(serial int64) string {
	if s.receipts == nil {
		return ""
	}
	code, err := s.receipts.Encode(serial)
	if err != nil {
		s.log.Error(err, "encode receipt", "serial", serial)
		return ""
	}
	return code
}

func (s *AssessmentService) dataDir(tool domain.Tool) string {
	if tool.DataDir != "" {
		return tool.DataDir
	}
	return filepath.Join(s.settings.DataDir, tool.Name)
}
