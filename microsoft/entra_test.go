// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package microsoft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mondoo.com/cnharvest/harvest"
)

func sampleUser() harvest.RawRecord {
	return harvest.RawRecord{
		"id":                "32d5cdbd-9a45-4d47-b2f0-17e5750e30f3",
		"userPrincipalName": "jdoe@corp.example.com",
		"displayName":       "Jane Doe",
		"accountEnabled":    true,
		"passwordPolicies":  "DisableStrongPassword",
	}
}

func TestUsersEndpointFilter(t *testing.T) {
	ep := UsersEndpoint("accountEnabled eq true")
	assert.Equal(t, "/v1.0/users", ep.Path)
	assert.Equal(t, "accountEnabled eq true", ep.Query.Get("$filter"))

	assert.Nil(t, UsersEndpoint("").Query)
}

func TestUserSchemaAcceptsGraphRecord(t *testing.T) {
	require.NoError(t, UserSchema().Validate(sampleUser()))

	rec := sampleUser()
	rec["accountEnabled"] = "yes"
	require.Error(t, UserSchema().Validate(rec))
}

func TestDecodeUser(t *testing.T) {
	u, err := DecodeUser(sampleUser())
	require.NoError(t, err)

	assert.Equal(t, "jdoe@corp.example.com", u.UserPrincipalName)
	assert.True(t, u.AccountEnabled)
	assert.Equal(t, "DisableStrongPassword", u.PasswordPolicies)
}

func TestHasPasswordExpiry(t *testing.T) {
	u := &User{}
	assert.True(t, u.HasPasswordExpiry())

	u.PasswordPolicies = "DisableStrongPassword"
	assert.True(t, u.HasPasswordExpiry())

	u.PasswordPolicies = "DisablePasswordExpiration"
	assert.False(t, u.HasPasswordExpiry())

	u.PasswordPolicies = "DisablePasswordExpiration, DisableStrongPassword"
	assert.False(t, u.HasPasswordExpiry())
}

func TestDisablePasswordExpiry(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := harvest.NewClient(harvest.Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	require.NoError(t, DisablePasswordExpiry(context.Background(), client, "32d5cdbd-9a45-4d47-b2f0-17e5750e30f3"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/v1.0/users/32d5cdbd-9a45-4d47-b2f0-17e5750e30f3", gotPath)
	assert.Equal(t, map[string]string{"passwordPolicies": "DisablePasswordExpiration"}, gotBody)
}
