package eocustom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jeremyhahn/go-eosso/pkg/signature"
	"github.com/sirupsen/logrus"
)

// Strategy authenticates users against the EO membership API. It is
// immutable after construction and safe for concurrent use; every callback
// runs in its own handshake.
type Strategy struct {
	config     Config
	signer     *signature.Signer
	api        *apiClient
	auditor    Auditor
	logger     logrus.FieldLogger
	metrics    *Metrics
	httpClient *http.Client
}

// Option configures optional collaborators of a Strategy.
type Option func(*Strategy)

// WithAuditor sets the audit collaborator. The default discards entries.
func WithAuditor(auditor Auditor) Option {
	return func(s *Strategy) {
		if auditor != nil {
			s.auditor = auditor
		}
	}
}

// WithLogger sets the logger. The default is the standard logrus logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Strategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Strategy) {
		s.metrics = metrics
	}
}

// WithHTTPClient replaces the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Strategy) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewStrategy validates a copy of config and builds a Strategy. A malformed
// secret key or a placeholder credential is reported here rather than
// mid-handshake. The caller's config is never modified.
func NewStrategy(config *Config, opts ...Option) (*Strategy, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	signer, err := signature.NewSigner(cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	s := &Strategy{
		config:  cfg,
		signer:  signer,
		auditor: NopAuditor{},
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		s.httpClient = newHTTPClient(s.config.Timeout, s.config.TLSConfig, s.config.InsecureSkipVerify)
	}

	s.api = newAPIClient(&s.config, signer, s.httpClient, s.metrics)

	return s, nil
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return s.config.Name
}

// AuthorizeURL returns the external login page URL carrying the client id.
func (s *Strategy) AuthorizeURL() string {
	sep := "?"
	if strings.Contains(s.config.AuthenticationURL, "?") {
		sep = "&"
	}
	return s.config.AuthenticationURL + sep + "clientid=" + url.QueryEscape(s.config.ClientID)
}

// RequestPhase redirects the user to the external login page.
func (s *Strategy) RequestPhase(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.AuthorizeURL(), http.StatusFound)
}

// CallbackPhase parses an inbound callback and runs the handshake.
func (s *Strategy) CallbackPhase(r *http.Request) (*Result, error) {
	req, err := ParseCallbackRequest(r)
	if err != nil {
		s.metrics.observeHandshake("failure")
		s.logger.WithField("strategy", s.config.Name).WithError(err).Warn("rejected callback")
		return nil, &HandshakeError{State: StateStart, Reason: ReasonInvalidCredentials, Err: err}
	}
	return s.Handshake(r.Context(), req)
}

// Handshake validates req and assembles the member identity. Any failure
// returns a *HandshakeError; no partial identity is ever returned.
func (s *Strategy) Handshake(ctx context.Context, req CallbackRequest) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.newHandshake(ctx, req).run(ctx)
}
