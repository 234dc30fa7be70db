// Package identity looks up platform users in the external identity service.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPResolver implements ports.IdentityResolver against the identity
// service's phone-lookup endpoint. An empty base URL disables lookups:
// every recipient is then treated as unregistered.
type HTTPResolver struct {
	baseURL    string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewHTTPResolver creates an identity resolver.
func NewHTTPResolver(cfg config.IdentityConfig, log zerolog.Logger) *HTTPResolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPResolver{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// NewHTTPResolverWithClient injects the HTTP client, for tests.
func NewHTTPResolverWithClient(baseURL string, client HTTPClient, log zerolog.Logger) *HTTPResolver {
	return &HTTPResolver{baseURL: baseURL, httpClient: client, log: log}
}

type identityResponse struct {
	Ref      string `json:"ref"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// ResolveByPhone returns the identity owning a phone number, or nil, nil
// when the number is not registered.
func (r *HTTPResolver) ResolveByPhone(ctx context.Context, phone string) (*ports.Identity, error) {
	if r.baseURL == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/identities/by-phone?phone=%s", r.baseURL, url.QueryEscape(phone))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body identityResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode identity response: %w", err)
		}
		return &ports.Identity{Ref: body.Ref, FullName: body.FullName, Phone: body.Phone}, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("identity service returned %d", resp.StatusCode)
	}
}
