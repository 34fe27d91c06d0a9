package eocustom

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// State is a step of the callback handshake.
type State string

const (
	StateStart              State = "start"
	StateSignatureValidated State = "signature_validated"
	StateTokenExchanged     State = "token_exchanged"
	StateIdentityAssembled  State = "identity_assembled"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

// CallbackRequest holds the parameters of an inbound callback.
type CallbackRequest struct {
	// Token is the opaque credential exchanged for a member token.
	Token string

	// APISig is the vendor signature, forwarded verbatim to the token exchange.
	APISig string

	// Sig is the signature over UserName + Token.
	Sig string

	// UserName is the claimed user name.
	UserName string

	// Origin is the host path the user started from.
	Origin string
}

// ParseCallbackRequest extracts the callback parameters from r. Parameters
// are read from the query string and, for POST callbacks, the form body.
func ParseCallbackRequest(r *http.Request) (CallbackRequest, error) {
	req := CallbackRequest{
		Token:    r.FormValue("token"),
		APISig:   r.FormValue("apiSig"),
		Sig:      r.FormValue("sig"),
		UserName: r.FormValue("userName"),
		Origin:   r.FormValue("origin"),
	}

	switch {
	case req.Token == "":
		return req, fmt.Errorf("%w: token", ErrMissingParameter)
	case req.Sig == "":
		return req, fmt.Errorf("%w: sig", ErrMissingParameter)
	case req.UserName == "":
		return req, fmt.Errorf("%w: userName", ErrMissingParameter)
	}

	return req, nil
}

// session is the state accumulated by one handshake. It is never shared
// between handshakes.
type session struct {
	handshakeID  string
	state        State
	memberID     string
	memberToken  string
	profile      *MemberProfile
	customFields CustomFields
}

// Result is the output of a completed handshake.
type Result struct {
	// Identity is the assembled member identity.
	Identity *Identity

	// Origin is the post-login redirect path.
	Origin string

	// EventID identifies the audit event of the handshake.
	EventID string

	// HandshakeID correlates the handshake's log entries.
	HandshakeID string
}

// handshake drives one callback from StateStart to StateCompleted or
// StateFailed. It is used once and discarded.
type handshake struct {
	strategy *Strategy
	req      CallbackRequest
	session  session
	event    AuditEvent
	log      logrus.FieldLogger
}

func (s *Strategy) newHandshake(ctx context.Context, req CallbackRequest) *handshake {
	id := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{
		"strategy":     s.config.Name,
		"handshake_id": id,
	})

	event, err := s.auditor.Begin(ctx, req.Origin, ActivitySSO)
	if err != nil || event == nil {
		log.WithError(err).Warn("audit event unavailable, continuing without audit")
		event = nopEvent{}
	}

	return &handshake{
		strategy: s,
		req:      req,
		session:  session{handshakeID: id, state: StateStart},
		event:    event,
		log:      log,
	}
}

func (h *handshake) run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, h.fail(err)
	}

	// Start -> SignatureValidated
	if !h.strategy.signer.Verify(h.req.UserName+h.req.Token, h.req.Sig) {
		return nil, h.fail(ErrSignatureMismatch)
	}
	h.advance(StateSignatureValidated)

	// SignatureValidated -> TokenExchanged
	exchanged, err := h.strategy.api.exchangeToken(ctx, h.event, h.req.Token, h.req.APISig)
	if err != nil {
		return nil, h.fail(err)
	}
	h.session.memberID = exchanged.MemberID
	h.session.memberToken = exchanged.MemberToken
	h.log = h.log.WithField("member_id", exchanged.MemberID)
	h.advance(StateTokenExchanged)

	// TokenExchanged -> IdentityAssembled
	if err := h.lookupMember(ctx); err != nil {
		return nil, h.fail(err)
	}
	identity := Assemble(h.session.memberID, h.session.profile, h.session.customFields)
	h.advance(StateIdentityAssembled)

	// IdentityAssembled -> Completed
	h.event.Finalize(EventRecord{UserInfo: identity.UserInfo()})
	h.advance(StateCompleted)
	h.strategy.metrics.observeHandshake("success")

	return &Result{
		Identity:    identity,
		Origin:      originPath(h.req.Origin),
		EventID:     h.event.ID(),
		HandshakeID: h.session.handshakeID,
	}, nil
}

// lookupMember fetches the member profile and the custom fields. The two
// branches only depend on the token exchange and may run in parallel.
func (h *handshake) lookupMember(ctx context.Context) error {
	api := h.strategy.api
	memberID, memberToken := h.session.memberID, h.session.memberToken

	if !h.strategy.config.Concurrent {
		profile, err := api.memberDetail(ctx, h.event, memberToken, memberID)
		if err != nil {
			return err
		}
		fields, err := api.fetchCustomFields(ctx, h.event, memberID)
		if err != nil {
			return err
		}
		h.session.profile = profile
		h.session.customFields = fields
		return nil
	}

	var (
		profile *MemberProfile
		fields  CustomFields
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := api.memberDetail(gctx, h.event, memberToken, memberID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		f, err := api.fetchCustomFields(gctx, h.event, memberID)
		if err != nil {
			return err
		}
		fields = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	h.session.profile = profile
	h.session.customFields = fields
	return nil
}

func (h *handshake) advance(next State) {
	h.log.WithField("state", next).Debugf("handshake %s -> %s", h.session.state, next)
	h.session.state = next
}

// fail moves the handshake to StateFailed and returns the error reported
// to the caller.
func (h *handshake) fail(err error) error {
	last := h.session.state
	h.session.state = StateFailed

	h.event.Fail()
	h.strategy.metrics.observeHandshake("failure")
	h.log.WithError(err).WithField("state", last).Warn("handshake failed")

	return &HandshakeError{
		State:  last,
		Reason: ReasonInvalidCredentials,
		Err:    err,
	}
}

// originPath turns the callback origin into a host-relative path. Leading
// slashes and backslashes are collapsed so the result is never a
// protocol-relative URL.
func originPath(origin string) string {
	return "/" + strings.TrimLeft(origin, `/\`)
}
