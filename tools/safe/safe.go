package safe

import (
	"RentChat/logger"
)

// Go starts a goroutine that recovers from panics, so a misbehaving
// broadcast or mirror write can't take the process down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
