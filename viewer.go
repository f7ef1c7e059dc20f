package halorbits

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Viewer displays a figure interactively.
type Viewer interface {
	Show(ctx context.Context, fig *Figure) error
}

// BrowserViewer serves the figure page once from a loopback HTTP server and opens it in the system browser.
type BrowserViewer struct {
	// Open opens the URL, defaults to the platform browser opener.
	Open    func(url string) error
	Logger  log.Logger
	Timeout time.Duration // How long to wait for the browser, defaults to one minute
}

// Show implements the Viewer interface. It returns once the page has been served.
func (b BrowserViewer) Show(ctx context.Context, fig *Figure) error {
	logger := b.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "subsys", "viewer")
	var page bytes.Buffer
	if err := WriteHTML(&page, fig); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	served := make(chan struct{})
	var once sync.Once
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(page.Len()))
		w.Write(page.Bytes())
		once.Do(func() { close(served) })
	})}
	go srv.Serve(ln)
	defer func() {
		// Let the handler finish writing the page before the server goes away.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			level.Warn(logger).Log("msg", "viewer shutdown", "err", err)
			srv.Close()
		}
	}()

	url := fmt.Sprintf("http://%s/", ln.Addr())
	open := b.Open
	if open == nil {
		open = openBrowser
	}
	level.Info(logger).Log("msg", "opening figure", "url", url)
	if err := open(url); err != nil {
		return fmt.Errorf("could not open browser: %w", err)
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	select {
	case <-served:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.New("the browser never requested the figure")
	}
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
