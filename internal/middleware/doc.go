// Package middleware provides HTTP middleware for the auth service.
package middleware
