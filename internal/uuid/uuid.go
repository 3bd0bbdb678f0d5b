// Package uuid wraps UUID generation behind a minimal interface.
package uuid

import guuid "github.com/google/uuid"

// New returns a new random UUID string.
func New() string {
	return guuid.NewString()
}
