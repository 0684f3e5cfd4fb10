package httpapi

import (
	"context"
	"net/http"
	"time"
)

// serverBaseCtx is cancelled by the daemon when shutdown begins.
var serverBaseCtx = context.Background()

// optimizeTimeout bounds a manual remediation run; zero disables the bound.
var optimizeTimeout = 30 * time.Second

// SetBaseContext sets the process-level context that aborts in-flight
// operations on shutdown. nil resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// operationContext ends when the request ends, when the base context is
// cancelled or after timeout, whichever comes first.
func operationContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(serverBaseCtx, cancel)
	release := func() {
		stop()
		cancel()
	}
	if timeout <= 0 {
		return ctx, release
	}
	tctx, tcancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		tcancel()
		release()
	}
}
