// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package microsoft

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
)

// TokenEnvVar is read when no token is passed explicitly.
const TokenEnvVar = "CNHARVEST_TOKEN"

// StaticToken wraps an already issued bearer token. Token acquisition
// lives outside of cnharvest, callers bring their own credential.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

// Token resolves the bearer token for API access. An explicitly passed
// token wins, otherwise the CNHARVEST_TOKEN environment variable is
// used.
func Token(explicit string) (oauth2.TokenSource, error) {
	token := explicit
	if token == "" {
		token = os.Getenv(TokenEnvVar)
	}
	if token == "" {
		return nil, errors.New("a valid API token is required, pass --token '<yourtoken>' or set " + TokenEnvVar + " environment variable")
	}
	return StaticToken(token), nil
}
