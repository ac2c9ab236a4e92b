package contxt

import (
	"context"
	"os"
	"time"
)

// NewContext bounds parent by timeout. Setting CONTEXT_TEST disables the
// deadline so tests can step through slow fakes.
func NewContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if os.Getenv("CONTEXT_TEST") != "" || timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
