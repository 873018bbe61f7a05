package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestCancelOnShutdown_EndsOpenStreams(t *testing.T) {
	e := echo.New()
	started := make(chan struct{})
	finished := make(chan struct{})

	e.GET("/stream", func(c echo.Context) error {
		defer close(finished)
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().WriteHeader(http.StatusOK)
		c.Response().Flush()
		close(started)
		<-c.Request().Context().Done()
		return nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: e}
	cancelOnShutdown(srv)
	go srv.Serve(ln)

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/stream")
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	begin := time.Now()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Errorf("shutdown took %s", elapsed)
	}

	select {
	case <-finished:
	default:
		t.Error("stream handler still running after shutdown")
	}
}
