// Package oidc validates federated identity tokens against an OpenID
// Connect provider.
//
// Two validation paths exist. Structured tokens are verified locally
// against the provider's published signing keys, which are fetched
// through a TTL-cached discovery document and key set. Opaque provider
// tokens carry no inspectable claims and are resolved by presenting them
// to the provider's userinfo endpoint.
//
// Both caches allow at most one in-flight upstream refresh at a time;
// concurrent callers either serve a briefly stale entry or wait on the
// refresh lock.
package oidc
