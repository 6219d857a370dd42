package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CopyBidirectional splices left and right until both directions have reached
// end-of-stream, or until the first error in either direction. A direction
// that finishes cleanly half-closes its destination so the other side sees
// EOF. Both connections are closed on return, and the first error is
// returned.
func CopyBidirectional(ctx context.Context, left, right net.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = left.Close()
			_ = right.Close()
		})
	}
	defer closeBoth()

	// On the first error or cancellation, close both sides to unblock the
	// other copy.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	g.Go(func() error {
		return copyHalf(left, right, "upstream->client")
	})

	g.Go(func() error {
		return copyHalf(right, left, "client->upstream")
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type closeWriter interface {
	CloseWrite() error
}

func copyHalf(dst, src net.Conn, dir string) error {
	buf := relayBuffers.Get()
	defer relayBuffers.Put(buf)

	// Hide ReaderFrom/WriterTo so every read is at most one buffer.
	_, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}

	if cw, ok := dst.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	return nil
}
