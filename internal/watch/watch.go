// Package watch is the client side of the status feed: it connects to a
// running proofgridgo and prints lifecycle events and pool snapshots.
package watch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/statusfeed"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// ErrDisconnected is returned when the server closes the feed.
var ErrDisconnected = errors.New("status feed disconnected")

// Options configures a watch session.
type Options struct {
	// URL of the health server, e.g. http://localhost:8080. The socket.io
	// path is appended when the URL has none.
	URL                string
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// Run connects to the feed and renders every message to out until ctx is
// done or the server goes away.
func Run(ctx context.Context, out io.Writer, opts Options) error {
	logger := ctxlog.FromContext(ctx).With("component", "watch", "url", opts.URL)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("URL '%s' must include scheme and host", opts.URL)
	}
	path := parsedURL.Path
	if path == "" || path == "/" {
		path = statusfeed.Path
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	client := manager.Socket("/", sopts)
	defer client.Disconnect()

	r := NewRenderer(out)
	connected := make(chan error, 1)
	closed := make(chan struct{})
	var closeOnce sync.Once

	client.Once(types.EventName("connect"), func(...any) {
		logger.Info("🔌 Connected to status feed.", "sid", client.Id())
		connected <- nil
	})
	client.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})
	client.On(types.EventName("disconnect"), func(...any) {
		closeOnce.Do(func() { close(closed) })
	})
	client.On(types.EventName(statusfeed.EventLifecycle), func(data ...any) {
		if m, ok := first(data); ok {
			r.Lifecycle(m)
		}
	})
	client.On(types.EventName(statusfeed.EventSnapshot), func(data ...any) {
		if m, ok := first(data); ok {
			r.Snapshot(m)
		}
	})

	client.Connect()

	select {
	case err := <-connected:
		if err != nil {
			return fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	select {
	case <-ctx.Done():
		return nil
	case <-closed:
		return ErrDisconnected
	}
}

func first(data []any) (map[string]any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	m, ok := data[0].(map[string]any)
	return m, ok
}
