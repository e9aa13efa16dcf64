package db

import "github.com/hazyhaar/pkg/idgen"

// NewID returns a fresh URL-safe identifier for sessions and users.
func NewID() string {
	return idgen.New()
}
