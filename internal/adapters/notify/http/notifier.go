package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	pkgerrors "github.com/pkg/errors"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
)

const DefaultTimeout = 10 * time.Second

// Notifier forwards scores to the launch platform's outcome endpoint.
type Notifier struct {
	url    string
	client *http.Client
	log    logr.Logger
}

var _ ports.OutcomeNotifier = (*Notifier)(nil)

type outcomeRequest struct {
	ResourceUser   string `json:"resourceUser"`
	UserID         string `json:"userId"`
	ResourceLinkID string `json:"resourceLinkId,omitempty"`
	ContextID      string `json:"contextId,omitempty"`
	ToolKey        string `json:"toolKey"`
	Score          string `json:"score"`
}

func NewNotifier(url string, timeout time.Duration, log logr.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.WithName("notifier"),
	}
}

// WriteOutcome posts score as a fraction in [0, 1]. Any non-2xx answer is an
// error.
func (n *Notifier) WriteOutcome(ctx context.Context, user domain.ResourceUser, key domain.ToolKeyID, score int) error {
	if n.url == "" {
		return pkgerrors.New("outcome endpoint is not configured")
	}

	body, err := json.Marshal(outcomeRequest{
		ResourceUser:   string(user.ID),
		UserID:         user.UserID,
		ResourceLinkID: user.ResourceLinkID,
		ContextID:      user.ContextID,
		ToolKey:        string(key),
		Score:          domain.OutcomeFraction(score),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "encode outcome")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(err, "build outcome request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return pkgerrors.Wrapf(err, "post outcome for %s", user.ID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.Errorf("outcome endpoint answered %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	n.log.V(1).Info("outcome written", "resourceUser", user.ID, "score", score)
	return nil
}
