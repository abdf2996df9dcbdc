// Package sender implements the provider-specific email delivery
// backends. Each sender satisfies core.Sender and is registered under its
// provider key by the registry at startup.
package sender

import (
	"encoding/json"
	"net/http"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// extractJSONField evaluates a JMESPath expression against a JSON body and
// returns the matched string, or nil when the body is not JSON, the path
// misses, or the match is not a non-empty string.
func extractJSONField(body []byte, expr string) *string {
	if len(body) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil
	}
	s, ok := result.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
