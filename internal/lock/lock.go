// Package lock provides the named locks that keep two settlement runs off the
// same round. Memory works inside one process, Redis across replicas.
package lock

import "errors"

// ErrLocked means the key is held by someone else.
var ErrLocked = errors.New("lock is held")
