// Package eocustom provides a single-sign-on strategy for the EO membership
// API.
//
// The host application redirects users to an external login page
// (RequestPhase) and later receives a callback carrying a token, a
// signature and the claimed user name (CallbackPhase). The strategy then
// runs a one-shot handshake:
//
//   - verify the callback signature over userName + token
//   - exchange the token for a member token (GET /v2/LoginSrv/Authenticate/)
//   - fetch the member profile (GET /v2/MemberSrv/GetMemberDetail/)
//   - obtain a bearer token with the password grant (POST /v3/Authenticate)
//     and fetch the custom fields (GET /v3/eo-members)
//   - assemble a normalized Identity
//
// Any failure ends the handshake with a *HandshakeError whose reason is
// invalid_credentials, except a failed custom field lookup, which yields
// blank custom fields. No remote call is retried.
//
// Example:
//
//	config := eocustom.DefaultConfig()
//	config.AuthenticationURL = "https://login.example.org/sso"
//	config.ClientID = "client-id"
//	config.SecretKey = "c2VjcmV0LWtleQ=="
//	config.Username = "service-user"
//	config.Password = "service-password"
//
//	strategy, err := eocustom.NewStrategy(&config,
//	    eocustom.WithAuditor(eocustom.NewLogAuditor(nil)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	http.HandleFunc("/auth/eo_custom", strategy.RequestPhase)
//	http.HandleFunc("/auth/eo_custom/callback", func(w http.ResponseWriter, r *http.Request) {
//	    result, err := strategy.CallbackPhase(r)
//	    if err != nil {
//	        http.Error(w, string(eocustom.ReasonOf(err)), http.StatusUnauthorized)
//	        return
//	    }
//	    http.Redirect(w, r, result.Origin, http.StatusFound)
//	})
//
// # Audit
//
// Every outbound call is bracketed by entries on the handshake's AuditEvent,
// opened through the host's Auditor keyed by the callback origin. Audit
// entries never influence whether a handshake succeeds.
//
// # Thread Safety
//
// A Strategy is immutable after construction and can be shared across
// goroutines. Handshake state lives in a per-callback session value.
package eocustom
