package ports

import "net/http"

// HTTPClient is what the GitHub and PyPI adapters send requests through.
// *http.Client satisfies it; tests pass a client bound to httptest servers.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
