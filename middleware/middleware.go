// Package middleware provides HTTP middleware for core.Client, applied with
// core.WithMiddleware. Each middleware wraps one HTTP exchange, so it runs
// once per retry attempt.
package middleware

import (
	"net/http"
	"strings"

	"github.com/petal-labs/showroom/core"
)

// ForPaths applies mw only to requests whose path starts with one of the
// prefixes.
func ForPaths(prefixes []string, mw core.Middleware) core.Middleware {
	return func(next core.RoundTripFunc) core.RoundTripFunc {
		wrapped := mw(next)
		return func(req *http.Request) (*http.Response, error) {
			if hasPrefix(req.URL.Path, prefixes) {
				return wrapped(req)
			}
			return next(req)
		}
	}
}

// ExceptPaths applies mw to every request except those whose path starts
// with one of the prefixes.
func ExceptPaths(prefixes []string, mw core.Middleware) core.Middleware {
	return func(next core.RoundTripFunc) core.RoundTripFunc {
		wrapped := mw(next)
		return func(req *http.Request) (*http.Response, error) {
			if hasPrefix(req.URL.Path, prefixes) {
				return next(req)
			}
			return wrapped(req)
		}
	}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
