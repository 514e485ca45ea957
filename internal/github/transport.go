package github

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// MediaType is the Accept header sent on every API request.
const MediaType = "application/vnd.github+json"

// headerTransport sets fixed headers on every outgoing request. It clones
// the request first, RoundTrippers must not mutate their input.
type headerTransport struct {
	header http.Header
	base   http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, vs := range t.header {
		r.Header.Del(k)
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(r)
}

// newTransport builds the client transport chain:
// bearer token -> fixed Accept header -> otel client spans -> base.
func newTransport(token string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	h := make(http.Header)
	h.Set("Accept", MediaType)

	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base: &headerTransport{
			header: h,
			base:   otelhttp.NewTransport(base),
		},
	}
}
