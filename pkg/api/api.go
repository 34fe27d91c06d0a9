package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jeremyhahn/go-eosso/pkg/eocustom"
	"github.com/sirupsen/logrus"
)

// Strategy defines the contract for a redirect-based SSO strategy. The
// request phase sends the user to the identity provider; the callback phase
// validates the provider's callback and returns the assembled identity.
type Strategy interface {
	Name() string
	RequestPhase(w http.ResponseWriter, r *http.Request)
	CallbackPhase(r *http.Request) (*eocustom.Result, error)
}

// FailureHandler reports a failed callback to the user.
type FailureHandler func(w http.ResponseWriter, r *http.Request, reason eocustom.Reason, err error)

// Config contains the strategies the service should expose and the host
// hooks invoked when a callback completes.
type Config struct {
	Strategies []Strategy

	// OnSuccess resumes the host application. The handshake result is
	// available through ResultFromContext. The default redirects to the
	// result's origin.
	OnSuccess http.Handler

	// OnFailure reports a failed callback. The default writes 401 with the
	// failure reason.
	OnFailure FailureHandler

	Logger logrus.FieldLogger
}

// Service routes SSO requests to the configured strategies.
type Service struct {
	strategies map[string]Strategy
	names      []string
	onSuccess  http.Handler
	onFailure  FailureHandler
	logger     logrus.FieldLogger
}

var (
	// ErrNoStrategies indicates the service was initialised without any strategies.
	ErrNoStrategies = errors.New("api: no sso strategies configured")
	// ErrStrategyNotFound indicates a requested strategy name does not exist.
	ErrStrategyNotFound = errors.New("api: requested strategy not configured")
)

// NewService builds a Service from the supplied configuration.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Strategies) == 0 {
		return nil, ErrNoStrategies
	}

	s := &Service{
		strategies: make(map[string]Strategy, len(cfg.Strategies)),
		onSuccess:  cfg.OnSuccess,
		onFailure:  cfg.OnFailure,
		logger:     cfg.Logger,
	}
	for i, strategy := range cfg.Strategies {
		if strategy == nil {
			return nil, fmt.Errorf("api: strategy at index %d is nil", i)
		}
		name := strategy.Name()
		if name == "" {
			return nil, fmt.Errorf("api: strategy at index %d has no name", i)
		}
		if _, ok := s.strategies[name]; ok {
			return nil, fmt.Errorf("api: duplicate strategy name %q", name)
		}
		s.strategies[name] = strategy
		s.names = append(s.names, name)
	}

	if s.onSuccess == nil {
		s.onSuccess = http.HandlerFunc(redirectToOrigin)
	}
	if s.onFailure == nil {
		s.onFailure = Unauthorized
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	return s, nil
}

// Names returns the configured strategy names in registration order.
func (s *Service) Names() []string {
	return append([]string(nil), s.names...)
}

// Strategy returns the strategy registered under name.
func (s *Service) Strategy(name string) (Strategy, error) {
	strategy, ok := s.strategies[name]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return strategy, nil
}

// Router returns a router serving the strategy routes.
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the request and callback routes on router.
func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/{provider}", s.requestPhase).Methods(http.MethodGet)
	router.HandleFunc("/auth/{provider}/callback", s.callbackPhase).Methods(http.MethodGet, http.MethodPost)
}

// requestPhase handles GET /auth/{provider}
func (s *Service) requestPhase(w http.ResponseWriter, r *http.Request) {
	strategy, err := s.Strategy(mux.Vars(r)["provider"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	strategy.RequestPhase(w, r)
}

// callbackPhase handles GET|POST /auth/{provider}/callback
func (s *Service) callbackPhase(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["provider"]
	strategy, err := s.Strategy(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	result, err := strategy.CallbackPhase(r)
	if err != nil {
		reason := eocustom.ReasonOf(err)
		s.logger.WithFields(logrus.Fields{
			"strategy": name,
			"reason":   reason,
		}).WithError(err).Info("sso callback failed")
		s.onFailure(w, r, reason, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"strategy":     name,
		"uid":          result.Identity.UID,
		"handshake_id": result.HandshakeID,
	}).Info("sso callback succeeded")

	s.onSuccess.ServeHTTP(w, r.WithContext(WithResult(r.Context(), result)))
}

// Unauthorized is the default FailureHandler. It writes 401 with the reason.
func Unauthorized(w http.ResponseWriter, r *http.Request, reason eocustom.Reason, err error) {
	http.Error(w, string(reason), http.StatusUnauthorized)
}

func redirectToOrigin(w http.ResponseWriter, r *http.Request) {
	target := "/"
	if result, ok := ResultFromContext(r.Context()); ok && result.Origin != "" {
		target = result.Origin
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type contextKey struct{}

// WithResult returns a copy of ctx carrying result.
func WithResult(ctx context.Context, result *eocustom.Result) context.Context {
	return context.WithValue(ctx, contextKey{}, result)
}

// ResultFromContext returns the handshake result stored by WithResult.
func ResultFromContext(ctx context.Context) (*eocustom.Result, bool) {
	result, ok := ctx.Value(contextKey{}).(*eocustom.Result)
	return result, ok && result != nil
}

// Ensure the EO strategy satisfies the Strategy interface.
var _ Strategy = (*eocustom.Strategy)(nil)
