package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bnema/grader/internal/admission"
	"github.com/bnema/grader/internal/application"
	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/identity"
)

type deliveryResponse struct {
	Kind      string `json:"kind"`
	Code      int    `json:"code"`
	Graded    bool   `json:"graded"`
	Score     string `json:"score,omitempty"`
	Test      bool   `json:"test,omitempty"`
	Output    string `json:"output,omitempty"`
	Reference string `json:"reference,omitempty"`
	Receipt   string `json:"receipt,omitempty"`
	AttemptID string `json:"attemptId,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) handleDelivery(c echo.Context) error {
	sessionID := sessionFrom(c)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing launch session")
	}

	reader, err := c.Request().MultipartReader()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "delivery must be multipart/form-data")
	}
	parts := &multipartParts{reader: reader}
	defer parts.close()

	result, err := s.assessor.Assess(c.Request().Context(), application.AssessCommand{
		SessionID: sessionID,
		Parts:     parts,
	})
	if err != nil {
		return s.deliveryError(c, err)
	}

	return c.JSON(statusFor(result), deliveryResponse{
		Kind:      result.Kind.String(),
		Code:      result.Code,
		Graded:    result.Kind.Graded(),
		Score:     result.Score,
		Test:      result.Test,
		Output:    result.Output,
		Reference: result.Reference,
		Receipt:   result.Receipt,
		AttemptID: result.AttemptID,
		Message:   result.Message,
	})
}

func (s *Server) deliveryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown or expired launch session")
	case errors.Is(err, domain.ErrInvalidLaunch):
		return echo.NewHTTPError(http.StatusForbidden, "delivery does not match the launch session")
	case errors.Is(err, domain.ErrToolKeyNotFound), errors.Is(err, domain.ErrToolNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "tool not found")
	default:
		s.log.Error(err, "delivery failed", "id", c.Response().Header().Get(echo.HeaderXRequestID))
		return echo.NewHTTPError(http.StatusInternalServerError, "delivery failed")
	}
}

// statusFor keeps graded outcomes at 200 whatever the score; only rejections
// carry an error status.
func statusFor(result application.AssessmentResult) int {
	if result.Kind == domain.OutcomeConcurrentConflict {
		return http.StatusConflict
	}
	if result.Kind != domain.OutcomeRejected {
		return http.StatusOK
	}

	switch {
	case result.Err == nil:
		return http.StatusServiceUnavailable
	case errors.Is(result.Err, domain.ErrWrongPassword), errors.Is(result.Err, domain.ErrNotPrivileged):
		return http.StatusForbidden
	case errors.Is(result.Err, domain.ErrToolDisabled):
		return http.StatusForbidden
	case errors.Is(result.Err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(result.Err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(result.Err, identity.ErrInvalidReference), errors.Is(result.Err, domain.ErrReferenceBinding),
		errors.Is(result.Err, domain.ErrAttemptNotFound), errors.Is(result.Err, domain.ErrMissingFile):
		return http.StatusNotFound
	case errors.Is(result.Err, admission.ErrConcurrentConflict):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func sessionFrom(c echo.Context) domain.SessionID {
	if id := c.Request().Header.Get(SessionHeader); id != "" {
		return domain.SessionID(id)
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return domain.SessionID(cookie.Value)
	}
	return ""
}

// multipartParts streams a multipart body into application parts.
type multipartParts struct {
	reader  *multipart.Reader
	current *multipart.Part
}

func (p *multipartParts) NextPart() (application.Part, error) {
	p.close()

	part, err := p.reader.NextPart()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return application.Part{}, io.EOF
		}
		return application.Part{}, err
	}
	p.current = part

	return application.Part{
		Name:     part.FormName(),
		FileName: part.FileName(),
		Body:     part,
	}, nil
}

func (p *multipartParts) close() {
	if p.current != nil {
		_ = p.current.Close()
		p.current = nil
	}
}
