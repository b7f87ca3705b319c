package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
	"github.com/jrsteele09/go-frontdoor-relay/internal/metrics"
	"github.com/jrsteele09/go-frontdoor-relay/internal/utils"
	"github.com/jrsteele09/go-frontdoor-relay/oauth2"
	xoauth2 "golang.org/x/oauth2"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"

	// DefaultTimeout bounds each outbound call when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20

	endpointToken        = "token"
	endpointSingleAccess = "singleaccess"
)

// Config identifies the OAuth client registered with the provider.
type Config struct {
	LoginURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration
}

// Client performs the two outbound token exchanges against the provider.
// It never follows redirects and never retries.
type Client struct {
	httpClient  *http.Client
	oauthConfig *xoauth2.Config
}

type Option func(*Client)

// WithHTTPClient uses hc for outbound calls. Its redirect policy and timeout
// are replaced. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		clone := *hc
		c.httpClient = &clone
	}
}

func New(cfg Config, options ...Option) *Client {
	loginURL := strings.TrimRight(cfg.LoginURL, "/")
	c := &Client{
		httpClient:  &http.Client{},
		oauthConfig: &xoauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: xoauth2.Endpoint{
				AuthURL:   loginURL + oauth2.AuthorizePath,
				TokenURL:  loginURL + oauth2.TokenPath,
				AuthStyle: xoauth2.AuthStyleInParams,
			},
		},
	}

	for _, opt := range options {
		opt(c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.httpClient.Timeout = timeout
	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return c
}

// TokenURL is the provider endpoint used for the authorization code grant.
func (c *Client) TokenURL() string {
	return c.oauthConfig.Endpoint.TokenURL
}

// ExchangeAuthorizationCode trades a single-use authorization code for tokens.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code string) CodeExchange {
	result := c.exchangeCode(ctx, code)
	metrics.ProviderCalls.WithLabelValues(endpointToken, string(result.Outcome)).Inc()
	return result
}

func (c *Client) exchangeCode(ctx context.Context, code string) CodeExchange {
	start := time.Now()
	defer func() {
		metrics.ProviderCallDuration.WithLabelValues(endpointToken).Observe(time.Since(start).Seconds())
	}()

	// x/oauth2 only returns a response for non-2xx statuses, so the
	// transport records the status of every attempt.
	capture := &statusCapture{next: c.httpClient.Transport}
	hc := *c.httpClient
	hc.Transport = capture
	ctx = context.WithValue(ctx, xoauth2.HTTPClient, &hc)

	token, err := c.oauthConfig.Exchange(ctx, code)
	result := CodeExchange{StatusCode: capture.status}

	var retrieveErr *xoauth2.RetrieveError
	var urlErr *url.Error
	switch {
	case errors.As(err, &retrieveErr):
		return rejectedExchange(result, retrieveErr)
	case errors.As(err, &urlErr):
		result.Outcome = OutcomeTransportFailure
		result.Err = fmt.Errorf("post %s: %w", endpointToken, scrubURLError(err))
	case err != nil:
		result.Outcome = OutcomeMalformed
		result.Err = fmt.Errorf("%w: %v", apperrors.ErrMalformedProviderResponse, err)
	default:
		tokens, err := tokensFrom(token)
		if err != nil {
			result.Outcome = OutcomeMalformed
			result.Err = err
			return result
		}
		result.Outcome = OutcomeSuccess
		result.Tokens = tokens
	}
	return result
}

// rejectedExchange classifies a non-2xx token endpoint response.
func rejectedExchange(result CodeExchange, retrieveErr *xoauth2.RetrieveError) CodeExchange {
	status := result.StatusCode
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	result.StatusCode = status

	switch {
	case status >= http.StatusInternalServerError:
		result.Outcome = OutcomeTransportFailure
		result.Err = fmt.Errorf("token endpoint returned status %d", status)
	case isRedirect(status):
		result.Outcome = OutcomeRejected
		if retrieveErr.Response != nil {
			result.Location = retrieveErr.Response.Header.Get("Location")
		}
		result.Err = fmt.Errorf("token endpoint redirected with status %d to %q", status, result.Location)
	default:
		result.Outcome = OutcomeRejected
		result.ProviderError = retrieveErr.ErrorCode
		result.ProviderErrorDescription = retrieveErr.ErrorDescription
		if result.ProviderError == "" {
			// bodies without a JSON content type are parsed as form values
			var providerErr oauth2.ErrorResponse
			if json.Unmarshal(retrieveErr.Body, &providerErr) == nil {
				result.ProviderError = providerErr.Error
				result.ProviderErrorDescription = providerErr.ErrorDescription
			}
		}
		result.Err = fmt.Errorf("token endpoint rejected the code with status %d: %s", status, result.ProviderError)
	}
	return result
}

// tokensFrom validates the provider specific fields of a token response.
func tokensFrom(token *xoauth2.Token) (*Tokens, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token missing", apperrors.ErrMalformedProviderResponse)
	}
	instanceURL := extraString(token, oauth2.FieldInstanceURL)
	if !isAbsoluteURL(instanceURL) {
		return nil, fmt.Errorf("%w: instance_url missing or not absolute", apperrors.ErrMalformedProviderResponse)
	}

	tokens := &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: nonEmpty(token.RefreshToken),
		InstanceURL:  strings.TrimRight(instanceURL, "/"),
		IdentityID:   nonEmpty(extraString(token, oauth2.FieldID)),
		IDToken:      nonEmpty(extraString(token, oauth2.FieldIDToken)),
	}
	if issuedAt := extraString(token, oauth2.FieldIssuedAt); issuedAt != "" {
		if ms, err := strconv.ParseInt(issuedAt, 10, 64); err == nil {
			issued := time.UnixMilli(ms).UTC()
			tokens.IssuedAt = &issued
		}
	}
	return tokens, nil
}

func extraString(token *xoauth2.Token, key string) string {
	s, _ := token.Extra(key).(string)
	return s
}

// statusCapture remembers the status of the last response it carried.
type statusCapture struct {
	next   http.RoundTripper
	status int
}

func (s *statusCapture) RoundTrip(req *http.Request) (*http.Response, error) {
	next := s.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if resp != nil {
		s.status = resp.StatusCode
	}
	return resp, err
}

// SingleAccessURL is the tenant endpoint that converts an access token into a front door URI.
func SingleAccessURL(instanceURL string) string {
	return strings.TrimRight(instanceURL, "/") + oauth2.SingleAccessPath
}

// ExchangeForSingleAccess asks the tenant for a one-time front door URI.
func (c *Client) ExchangeForSingleAccess(ctx context.Context, accessToken, instanceURL string) SingleAccess {
	result := c.exchangeSingleAccess(ctx, accessToken, instanceURL)
	metrics.ProviderCalls.WithLabelValues(endpointSingleAccess, string(result.Outcome)).Inc()
	return result
}

func (c *Client) exchangeSingleAccess(ctx context.Context, accessToken, instanceURL string) SingleAccess {
	if !isAbsoluteURL(instanceURL) {
		return SingleAccess{
			Outcome: OutcomeTransportFailure,
			Err:     fmt.Errorf("instance url %q is not absolute", instanceURL),
		}
	}

	form := url.Values{}
	form.Set(oauth2.ParamAccessToken, accessToken)

	resp, body, err := c.postForm(ctx, endpointSingleAccess, SingleAccessURL(instanceURL), form, accessToken)
	if err != nil {
		return SingleAccess{Outcome: OutcomeTransportFailure, Err: err}
	}

	result := SingleAccess{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		result.Outcome = OutcomeTransportFailure
		result.Err = fmt.Errorf("single access endpoint returned status %d", resp.StatusCode)
	case isRedirect(resp.StatusCode):
		result.Outcome = OutcomeRejected
		result.Location = resp.Header.Get("Location")
		result.Err = fmt.Errorf("single access endpoint redirected with status %d to %q", resp.StatusCode, result.Location)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		result.Outcome = OutcomeRejected
		result.Err = fmt.Errorf("single access endpoint rejected the request with status %d", resp.StatusCode)
	default:
		uri, err := parseSingleAccessURI(body)
		if err != nil {
			result.Outcome = OutcomeMalformed
			result.Err = err
			return result
		}
		result.Outcome = OutcomeSuccess
		result.URI = uri
	}
	return result
}

// parseSingleAccessURI accepts {"frontdoor_uri": ...}, {"frontdoorUri": ...},
// a JSON string, or a raw URL body. A body without a URI yields nil.
func parseSingleAccessURI(body []byte) (*string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var sa oauth2.SingleAccessResponse
		if err := json.Unmarshal([]byte(trimmed), &sa); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedProviderResponse, err)
		}
		return usableURI(sa.URI()), nil
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedProviderResponse, err)
		}
		return usableURI(s), nil
	default:
		return usableURI(trimmed), nil
	}
}

// usableURI keeps absolute http(s) URLs and absolute paths.
func usableURI(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return &s
	}
	if isAbsoluteURL(s) {
		return &s
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint, target string, form url.Values, bearer string) (*http.Response, []byte, error) {
	start := time.Now()
	defer func() {
		metrics.ProviderCallDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("post %s: %w", endpoint, scrubURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return resp, body, nil
}

// scrubURLError drops the request URL from transport errors so logs carry the
// cause only.
func scrubURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return utils.Ptr(s)
}
