package safe

import (
	"chatty/logger"
)

// Go starts a goroutine that recovers from panic, so a panicking
// handler doesn't take the whole gateway down with it.
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
