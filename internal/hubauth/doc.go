// Package hubauth performs the REST calls the relay needs against the hub:
// credential login, per-socket channel authorization and the liveness probe.
//
// # Login
//
// Login first probes GET /api/health. When the probe fails the client
// does not attempt the login POST at all and answers from the credential
// cache, producing an offline Session. When the probe succeeds it POSTs
// /api/login; a response without a token, a non-200 status or a transport
// failure also falls back to the cache. Successful online logins refresh the
// cache when the credentials or tenant list changed, and persist the bearer
// token to disk.
//
// # Errors
//
// Every failure is an *AuthError with a Kind:
//
//	KindInvalid          credentials or token rejected by the hub
//	KindNetworkFailure   hub unreachable or failing, and nothing cached
//	KindNotConfigured    no hub address and nothing cached
//
// Usage:
//
//	client, err := hubauth.New(hubauth.Config{BaseURL: cfg.Hub.HTTPBaseURL(), TokenPath: path}, vault)
//	sess, err := client.Login(ctx, userID, password)
//	if hubauth.IsKind(err, hubauth.KindInvalid) {
//	    // report AUTH_ERROR
//	}
package hubauth
