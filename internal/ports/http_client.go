package ports

import "net/http"

// HTTPClient is the transport behind the report sender.
// *http.Client satisfies it; tests pass the client of an httptest server.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
