package toolruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/orbitalflow/engine/internal/orcherr"
	"github.com/orbitalflow/engine/internal/registry"
	"github.com/orbitalflow/engine/internal/toolsec"
)

// KindTool namespaces every tool-factory registration so a same-named
// entry under a different node kind (e.g. a "http" workflow) can never
// collide with the "http" tool below.
const KindTool = "tool"

// RegisterBuiltins installs the tool factories every deployment ships
// with regardless of plugin manifest — currently just "http".
func RegisterBuiltins(reg *registry.Registry) {
	reg.RegisterFactory(KindTool, "http", func(map[string]any) (any, error) {
		return NewHTTPTool(), nil
	})
}

// HTTPTool is the built-in "http" tool every registry ships with: it
// issues one outbound HTTP request per invocation after an SSRF/path
// check: no tool node may reach internal network services.
type HTTPTool struct {
	client    *http.Client
	validator *toolsec.URLValidator
}

func NewHTTPTool() *HTTPTool {
	return &HTTPTool{
		client:    &http.Client{Timeout: 30 * time.Second},
		validator: toolsec.NewURLValidator(),
	}
}

// Invoke expects args: {"url": string, "method": string (default GET),
// "headers": map[string]string, "body": any}.
func (t *HTTPTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, orcherr.New(orcherr.KindValidation, "", "http tool requires a \"url\" argument")
	}
	if err := t.validator.Validate(rawURL); err != nil {
		return nil, orcherr.Wrap(orcherr.KindTool, "", err, "url failed security validation")
	}

	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body, ok := args["body"]; ok {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.KindValidation, "", err, "failed to marshal request body")
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindTool, "", err, "failed to build request")
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindTool, "", err, "http request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindTool, "", err, "failed to read response body")
	}

	var decoded any
	if json.Unmarshal(respBody, &decoded) != nil {
		decoded = string(respBody)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     resp.Header,
		"body":        decoded,
	}, nil
}

// IsDeterministic is always false: the tool performs network I/O whose
// result can change between calls with identical arguments.
func (t *HTTPTool) IsDeterministic() bool { return false }
