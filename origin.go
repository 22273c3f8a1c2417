package atoms

import (
	"sync"

	"github.com/google/uuid"
)

var (
	originOnce sync.Once
	originID   string
)

// OriginID returns the process-stable origin identifier, generated once on
// first use. It distinguishes the writer of a persisted state, breaks version
// ties during merge, and lets a process recognize its own echoed writes.
func OriginID() string {
	originOnce.Do(func() {
		originID = uuid.NewString()
	})
	return originID
}
