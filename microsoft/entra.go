// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package microsoft

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"go.mondoo.com/cnharvest/harvest"
)

// PasswordNeverExpires is the directory password policy that disables
// password expiration.
const PasswordNeverExpires = "DisablePasswordExpiration"

// User is one Entra ID directory user.
type User struct {
	ID                string `mapstructure:"id"`
	UserPrincipalName string `mapstructure:"userPrincipalName"`
	DisplayName       string `mapstructure:"displayName"`
	AccountEnabled    bool   `mapstructure:"accountEnabled"`
	PasswordPolicies  string `mapstructure:"passwordPolicies"`
}

// UsersEndpoint lists directory users. A non-empty filter is passed
// through as a server side $filter expression.
func UsersEndpoint(filter string) harvest.Endpoint {
	ep := harvest.Endpoint{
		Name:     "users",
		Path:     "/v1.0/users",
		PageSize: 999,
		Schema:   UserSchema(),
	}
	if filter != "" {
		ep.Query = url.Values{"$filter": []string{filter}}
	}
	return ep
}

func UserSchema() *harvest.Schema {
	return harvest.NewSchema("users",
		harvest.Field{Name: "id", Kind: harvest.KindString, Required: true},
		harvest.Field{Name: "userPrincipalName", Kind: harvest.KindString},
		harvest.Field{Name: "displayName", Kind: harvest.KindString},
		harvest.Field{Name: "accountEnabled", Kind: harvest.KindBool},
		harvest.Field{Name: "passwordPolicies", Kind: harvest.KindString},
	)
}

// UserPath is the resource path of one directory user.
func UserPath(userID string) string {
	return "/v1.0/users/" + url.PathEscape(userID)
}

// HasPasswordExpiry reports whether the user's password still expires.
func (u *User) HasPasswordExpiry() bool {
	for _, policy := range harvest.SplitList(u.PasswordPolicies) {
		if policy == PasswordNeverExpires {
			return false
		}
	}
	return true
}

// DisablePasswordExpiry patches one user to the never-expires policy.
func DisablePasswordExpiry(ctx context.Context, client *harvest.Client, userID string) error {
	body := map[string]string{"passwordPolicies": PasswordNeverExpires}
	return client.Patch(ctx, UserPath(userID), body, nil)
}

// DecodeUser turns a validated record into its typed row.
func DecodeUser(rec harvest.RawRecord) (*User, error) {
	var u User
	if err := mapstructure.WeakDecode(map[string]interface{}(rec), &u); err != nil {
		return nil, errors.Wrap(err, "cannot decode user record")
	}
	return &u, nil
}
