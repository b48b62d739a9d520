package corrector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/grader/internal/domain"
	"github.com/go-logr/logr"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
	contentTypeText      = "text/plain; charset=utf-8"
)

// HTTPConfig describes how to forward a delivery to a remote corrector. It is
// read from the tool's corrector path.
type HTTPConfig struct {
	URL                   string            `yaml:"url"`
	Method                string            `yaml:"method"`
	Headers               map[string]string `yaml:"headers"`
	Parameters            map[string]string `yaml:"parameters"`
	FileParameter         string            `yaml:"file_parameter"`
	ContentType           string            `yaml:"content_type"`
	RequestBody           string            `yaml:"request_body"`
	JSONResponse          bool              `yaml:"json_response"`
	ScoreTemplate         string            `yaml:"score_template"`
	DefaultScoreOnSuccess *int              `yaml:"default_score_on_success"`
	DefaultScoreOnError   *int              `yaml:"default_score_on_error"`
	ResponseTemplate      []string          `yaml:"response_template"`
}

// LoadHTTPConfig reads a YAML (or JSON) request description.
func LoadHTTPConfig(path string) (HTTPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HTTPConfig{}, fmt.Errorf("read http corrector config: %w", err)
	}
	return ParseHTTPConfig(data)
}

func ParseHTTPConfig(data []byte) (HTTPConfig, error) {
	var cfg HTTPConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return HTTPConfig{}, fmt.Errorf("decode http corrector config: %w", err)
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return HTTPConfig{}, errors.New("http corrector config: url is required")
	}
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	return cfg, nil
}

func (c HTTPConfig) successScore() int {
	if c.DefaultScoreOnSuccess == nil {
		return domain.MaxScore
	}
	return *c.DefaultScoreOnSuccess
}

func (c HTTPConfig) errorScore() int {
	if c.DefaultScoreOnError == nil {
		return domain.CodeCorrectorError
	}
	return *c.DefaultScoreOnError
}

type httpRunner struct {
	artifacts
	log     logr.Logger
	cfg     HTTPConfig
	client  *http.Client
	maxBody int64
}

func (r *httpRunner) Exec(ctx context.Context, inv Invocation) int {
	ctx, cancel := context.WithTimeout(ctx, inv.timeout())
	defer cancel()

	errLog, err := os.Create(inv.OutputPath + domain.ErrorSuffix)
	if err != nil {
		r.log.Error(err, "create corrector error output")
		return domain.CodeRunnerError
	}
	defer errLog.Close()

	req, err := r.buildRequest(ctx, inv)
	if err != nil {
		fmt.Fprintln(errLog, err)
		return domain.CodeRunnerError
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.CodeTimeout
		}
		err = pkgerrors.Wrapf(err, "%s %s", req.Method, req.URL.Redacted())
		fmt.Fprintln(errLog, err)
		r.log.Error(err, "call http corrector")
		return domain.CodeRunnerError
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.CodeTimeout
		}
		fmt.Fprintln(errLog, pkgerrors.Wrap(err, "read response"))
		return domain.CodeRunnerError
	}
	if int64(len(body)) > r.maxBody {
		fmt.Fprintln(errLog, "response too big")
		body = []byte("Excessive length")
	}

	return r.processResponse(resp, body, inv.OutputPath, errLog)
}

func (r *httpRunner) buildRequest(ctx context.Context, inv Invocation) (*http.Request, error) {
	args := inv.positional()
	target := expandRequest(r.cfg.URL, args)
	params := expandMap(r.cfg.Parameters, args)
	headers := expandMap(r.cfg.Headers, args)
	fileParam := expandRequest(r.cfg.FileParameter, args)

	contentType := r.cfg.ContentType
	if contentType == "" {
		contentType = headers["Content-Type"]
	}
	if contentType == "" {
		contentType = contentTypeText
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parse content type %q: %w", contentType, err)
	}

	var body io.Reader
	withBody := r.cfg.Method != http.MethodGet && r.cfg.Method != http.MethodHead && r.cfg.Method != http.MethodDelete

	switch {
	case !withBody:
		target, err = withQuery(target, params)
	case fileParam == "" && r.cfg.RequestBody != "":
		target, err = withQuery(target, params)
		body = strings.NewReader(expandRequest(r.cfg.RequestBody, args))
	case fileParam == "" && mediaType == contentTypeForm:
		body = strings.NewReader(toValues(params).Encode())
	case fileParam != "" && mediaType == contentTypeMultipart:
		var buf *bytes.Buffer
		buf, contentType, err = multipartBody(params, fileParam, inv)
		body = buf
	default:
		data, readErr := os.ReadFile(inv.InputPath)
		if readErr != nil {
			return nil, fmt.Errorf("read delivery: %w", readErr)
		}
		body = bytes.NewReader(data)
	}
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, r.cfg.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if withBody {
		req.Header.Set("Content-Type", contentType)
	}
	if r.cfg.JSONResponse {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

func (r *httpRunner) processResponse(resp *http.Response, body []byte, outputPath string, errLog io.Writer) int {
	values := responseValues{
		body:    string(body),
		headers: make(map[string]string, len(resp.Header)),
		json:    r.cfg.JSONResponse && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"),
	}
	for name, vals := range resp.Header {
		values.headers[strings.ToLower(name)] = strings.Join(vals, ",")
	}

	score := r.cfg.errorScore()
	switch {
	case r.cfg.ScoreTemplate != "":
		parsed, err := strconv.Atoi(strings.TrimSpace(expandResponse(r.cfg.ScoreTemplate, values)))
		if err != nil {
			fmt.Fprintf(errLog, "score template did not produce an integer: %v\n", err)
			score = domain.CodeCorrectorError
		} else {
			score = parsed
		}
	case resp.StatusCode < http.StatusMultipleChoices:
		score = r.cfg.successScore()
	}

	var output []byte
	if len(r.cfg.ResponseTemplate) > 0 {
		var buf bytes.Buffer
		for _, line := range r.cfg.ResponseTemplate {
			buf.WriteString(expandResponse(line, values))
			buf.WriteByte('\n')
		}
		output = buf.Bytes()
	} else {
		output = body
	}
	if err := os.WriteFile(outputPath, output, 0o600); err != nil {
		fmt.Fprintf(errLog, "write output: %v\n", err)
	}

	return Normalize(score)
}

func expandMap(in map[string]string, args []string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[expandRequest(key, args)] = expandRequest(value, args)
	}
	return out
}

func toValues(params map[string]string) url.Values {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values
}

func withQuery(target string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse corrector url: %w", err)
	}
	query := u.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func multipartBody(params map[string]string, fileParam string, inv Invocation) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for key, value := range params {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write multipart field %q: %w", key, err)
		}
	}

	f, err := os.Open(inv.InputPath)
	if err != nil {
		return nil, "", fmt.Errorf("open delivery: %w", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(fileParam, filepath.Base(inv.FileName))
	if err != nil {
		return nil, "", fmt.Errorf("create multipart file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy delivery: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
