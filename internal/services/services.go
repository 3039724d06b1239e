package services

import (
	"context"
	"encoding/json"
)

// TokenProvider hands out access tokens that are valid at the time of the call.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Fetcher performs read-only Web API GETs and returns the JSON body verbatim.
//
// path is everything after the /v1 prefix, query string included.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (json.RawMessage, error)
}

var (
	_ TokenProvider = (*TokenCache)(nil)
	_ TokenProvider = (*APIService)(nil)
	_ Fetcher       = (*Proxy)(nil)
	_ Fetcher       = (*APIService)(nil)
)
