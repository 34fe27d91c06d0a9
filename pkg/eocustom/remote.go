package eocustom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-eosso/pkg/signature"
	"golang.org/x/oauth2"
)

const (
	tokenExchangePath = "/v2/LoginSrv/Authenticate/"
	memberDetailPath  = "/v2/MemberSrv/GetMemberDetail/"
	passwordGrantPath = "/v3/Authenticate"
	customFieldsPath  = "/v3/eo-members"

	maxResponseBytes = 1 << 20
)

// remoteCall names an outbound call in audit entries and metrics.
type remoteCall struct {
	display string
	label   string
}

var (
	callTokenExchange = remoteCall{display: "Authenticate v2", label: "token_exchange"}
	callMemberDetail  = remoteCall{display: "GetMemberDetail", label: "member_detail"}
	callPasswordGrant = remoteCall{display: "Authenticate v3", label: "password_grant"}
	callCustomFields  = remoteCall{display: "EOMembers", label: "custom_fields"}
)

// tokenExchangeResponse is the body of a successful v2 token exchange.
type tokenExchangeResponse struct {
	MemberID    string `json:"MemberId"`
	MemberToken string `json:"MemberToken"`
}

// MemberProfile is the raw profile returned by the v2 member detail lookup.
// Absent fields decode as empty strings.
type MemberProfile struct {
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
	Nickname  string `json:"Nickname"`
	MemberID  string `json:"MemberId"`
}

// customFieldsRecord is one element of the v3 eo-members response.
type customFieldsRecord struct {
	RegionName      string `json:"RegionName"`
	BusinessCountry string `json:"BusinessCountry"`
	Gender          string `json:"Gender"`
	BirthDate       string `json:"BirthDate"`
}

// queryParam keeps query parameters in the order the API signs them.
type queryParam struct {
	key   string
	value string
}

// apiClient issues the outbound calls of a handshake. It holds no
// per-handshake state and is safe for concurrent use.
type apiClient struct {
	site       string
	clientID   string
	username   string
	password   string
	signer     *signature.Signer
	httpClient *http.Client
	oauthCfg   *oauth2.Config
	metrics    *Metrics
}

func newAPIClient(config *Config, signer *signature.Signer, httpClient *http.Client, metrics *Metrics) *apiClient {
	return &apiClient{
		site:       config.Site,
		clientID:   config.ClientID,
		username:   config.Username,
		password:   config.Password,
		signer:     signer,
		httpClient: httpClient,
		oauthCfg: &oauth2.Config{
			ClientID: config.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  config.Site + passwordGrantPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		metrics: metrics,
	}
}

// buildURL joins the site, path and ordered query parameters. The result is
// both the request URL and the message signed for the Authorization header.
func (c *apiClient) buildURL(path string, params ...queryParam) string {
	var b strings.Builder
	b.WriteString(c.site)
	b.WriteString(path)
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// exchangeToken trades the inbound callback token for a member token.
func (c *apiClient) exchangeToken(ctx context.Context, event AuditEvent, token, apiSig string) (*tokenExchangeResponse, error) {
	requestURL := c.buildURL(tokenExchangePath,
		queryParam{"clientId", c.clientID},
		queryParam{"token", token},
		queryParam{"apiSig", apiSig},
	)

	var out tokenExchangeResponse
	if err := c.getJSON(ctx, event, callTokenExchange, requestURL, c.signer.Sign(requestURL), ErrTokenExchangeFailed, &out); err != nil {
		return nil, err
	}

	if out.MemberID == "" || out.MemberToken == "" {
		return nil, fmt.Errorf("%w: response is missing MemberId or MemberToken", ErrTokenExchangeFailed)
	}

	return &out, nil
}

// memberDetail fetches the member profile using the exchanged member token.
func (c *apiClient) memberDetail(ctx context.Context, event AuditEvent, memberToken, memberID string) (*MemberProfile, error) {
	requestURL := c.buildURL(memberDetailPath,
		queryParam{"clientId", c.clientID},
		queryParam{"token", memberToken},
		queryParam{"memberId", memberID},
	)

	var out MemberProfile
	if err := c.getJSON(ctx, event, callMemberDetail, requestURL, c.signer.Sign(requestURL), ErrMemberDetailFailed, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// passwordGrant obtains a v3 bearer token with the configured service
// account using the OAuth 2.0 resource owner password credentials flow.
func (c *apiClient) passwordGrant(ctx context.Context, event AuditEvent) (string, error) {
	event.Log(LevelInfo, requestLog(callPasswordGrant, http.MethodPost, c.oauthCfg.Endpoint.TokenURL))

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauthCfg.PasswordCredentialsToken(ctx, c.username, c.password)
	if err != nil {
		c.metrics.observeCall(callPasswordGrant, false, time.Since(start))

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			event.Log(LevelError, responseLog(callPasswordGrant, retrieveErr.Response.StatusCode, retrieveErr.Body))
		} else {
			event.Log(LevelError, errorLog(callPasswordGrant, err))
		}
		return "", fmt.Errorf("%w: %v", ErrPasswordGrantFailed, err)
	}

	c.metrics.observeCall(callPasswordGrant, true, time.Since(start))
	event.Log(LevelInfo, fmt.Sprintf("[EOCustom] %s Response (ok):\ntoken_type=%s", callPasswordGrant.display, token.Type()))

	return token.AccessToken, nil
}

// customFields fetches the member's custom fields with a v3 bearer token.
func (c *apiClient) customFields(ctx context.Context, event AuditEvent, accessToken, memberID string) (*customFieldsRecord, error) {
	requestURL := c.buildURL(customFieldsPath,
		queryParam{"ClientId", c.clientID},
		queryParam{"user_id", memberID},
	)

	var out []customFieldsRecord
	if err := c.getJSON(ctx, event, callCustomFields, requestURL, "Bearer "+accessToken, ErrCustomFieldsFailed, &out); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: response contains no members", ErrCustomFieldsFailed)
	}

	return &out[0], nil
}

// getJSON performs a GET request and decodes a successful JSON response into
// out. Transport errors, non-2xx statuses and malformed bodies all return an
// error wrapping failure.
func (c *apiClient) getJSON(ctx context.Context, event AuditEvent, call remoteCall, requestURL, authorization string, failure error, out any) error {
	event.Log(LevelInfo, requestLog(call, http.MethodGet, requestURL))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", failure, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeCall(call, false, time.Since(start))
		event.Log(LevelError, errorLog(call, err))
		return fmt.Errorf("%w: %v", failure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.observeCall(call, false, time.Since(start))
		event.Log(LevelError, errorLog(call, err))
		return fmt.Errorf("%w: failed to read response: %v", failure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.observeCall(call, false, time.Since(start))
		event.Log(LevelError, responseLog(call, resp.StatusCode, body))
		return fmt.Errorf("%w: status %d", failure, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.metrics.observeCall(call, false, time.Since(start))
		event.Log(LevelError, responseLog(call, resp.StatusCode, body))
		return fmt.Errorf("%w: failed to parse response: %v", failure, err)
	}

	c.metrics.observeCall(call, true, time.Since(start))
	event.Log(LevelInfo, responseLog(call, resp.StatusCode, body))

	return nil
}

func requestLog(call remoteCall, method, requestURL string) string {
	return fmt.Sprintf("[EOCustom] %s Request:\n%s %s", call.display, method, requestURL)
}

func responseLog(call remoteCall, status int, body []byte) string {
	return fmt.Sprintf("[EOCustom] %s Response (code: %d):\n%s", call.display, status, body)
}

func errorLog(call remoteCall, err error) string {
	return fmt.Sprintf("[EOCustom] %s Response (error):\n%v", call.display, err)
}
