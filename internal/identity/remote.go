package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/obslog"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type validateRequest struct {
	AccessToken string `json:"access_token"`
}

type validateResponse struct {
	UserID string `json:"user_id"`
}

// RemoteGateway validates tokens against an auth service's /auth/validate.
type RemoteGateway struct {
	baseURL      string
	serviceToken string
	http         *fasthttp.Client
	timeout      time.Duration
}

type RemoteOption func(*RemoteGateway)

func WithTimeout(d time.Duration) RemoteOption {
	return func(g *RemoteGateway) { g.timeout = d }
}

func WithServiceToken(token string) RemoteOption {
	return func(g *RemoteGateway) { g.serviceToken = token }
}

func NewRemoteGateway(baseURL string, opts ...RemoteOption) *RemoteGateway {
	g := &RemoteGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *RemoteGateway) Verify(ctx context.Context, cred Credentials) (string, error) {
	if cred.BearerToken == "" {
		return "", errMissingToken
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	payload, err := json.Marshal(validateRequest{AccessToken: cred.BearerToken})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(g.baseURL + "/auth/validate")
	req.Header.SetContentType("application/json")
	if g.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.serviceToken)
	}
	req.SetBody(payload)

	deadline := time.Now().Add(g.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.http.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("%w: auth service: %w", apperr.ErrStoreUnavailable, err)
	}

	status := resp.StatusCode()
	switch {
	case status >= 500:
		return "", fmt.Errorf("%w: auth service status %d", apperr.ErrStoreUnavailable, status)
	case status != fasthttp.StatusOK:
		obslog.L().Debug("auth_validate_rejected", zap.Int("status", status))
		return "", fmt.Errorf("%w: token rejected", apperr.ErrUnauthenticated)
	}

	var out validateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if out.UserID == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrUnauthenticated)
	}
	return out.UserID, nil
}
