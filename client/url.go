package client

import (
	"fmt"
	"net/url"
)

// WebSocketPath is the session endpoint
const WebSocketPath = "/ws"

// URLFromPage derives the endpoint from the page the client was served
// from: https pages use wss, everything else ws.
func URLFromPage(page string) (string, error) {
	u, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", page, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid page url %q: missing host", page)
	}

	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: WebSocketPath}).String(), nil
}
