// Package core provides the showroom client plumbing shared by the
// catalog, discovery and chat resource clients: credentials, transport,
// retry, error classification and telemetry.
//
// # Client
//
// A [Client] is built once from an [AuthContext] and passed to each resource
// client:
//
//	auth, err := core.NewAuthContext(apiKey, tenantID)
//	if err != nil {
//	    return err // wraps core.ErrConfig
//	}
//	client, err := core.NewClient(auth,
//	    core.WithBaseURL("https://api.example.com"),
//	    core.WithRetryPolicy(core.DefaultRetryPolicy()),
//	)
//	products := catalog.New(client)
//
// [NewClientFromEnv] reads SHOWROOM_API_KEY, SHOWROOM_TENANT_ID and
// SHOWROOM_BASE_URL.
//
// # Errors
//
// Every returned error wraps exactly one sentinel:
//   - [ErrValidation]: rejected locally before dispatch, or HTTP 400
//   - [ErrAuth]: HTTP 401/403
//   - [ErrNotFound]: HTTP 404
//   - [ErrServer]: HTTP 5xx and 429
//   - [ErrTransport]: connection failure or timeout
//   - [ErrCancelled]: the caller cancelled the context
//   - [ErrConfig]: missing credentials or bad base URL
//   - [ErrDecode]: a 2xx body that could not be interpreted
//
// Use errors.Is to branch and errors.As with [*APIError] for status, code
// and request id.
//
// # Retry
//
// Only ErrServer and ErrTransport are retried. The delay before attempt k
// is BaseDelay * 2^(k-2). Streams are retried only while connecting.
//
// # Thread Safety
//
// [Client] and [AuthContext] are safe for concurrent use.
package core
