// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// Identity is the acting user and tenant an operation runs as. The host
// attaches it to the context; the token source picks it up when minting
// bearer tokens for remote calls.
type Identity struct {
	UserID   string
	TenantID string
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity from ctx, if one is attached.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
