package web

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hpungsan/ale2ccc/internal/logger"
	"github.com/hpungsan/ale2ccc/internal/ops"
)

//go:embed templates/*.html static/*
var assets embed.FS

const shutdownTimeout = 5 * time.Second

// NewServer builds the history UI server on bind:port.
// deps.DB must be set; the UI only reads and prunes recorded runs.
func NewServer(deps ops.Deps, version, bind string, port int) (*http.Server, error) {
	pages, err := fs.Sub(assets, "templates")
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	h := &Handlers{
		deps:     deps,
		renderer: NewRenderer(pages, version, log.Named("web")),
	}

	return &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
		Handler:           securityHeaders(routes(h, static)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes maps the run history URLs onto h.
func routes(h *Handlers, static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", http.RedirectHandler("/runs", http.StatusFound))
	mux.HandleFunc("GET /runs", h.HandleList)
	mux.HandleFunc("POST /runs/prune", h.HandlePrune)
	mux.HandleFunc("GET /runs/{id}", h.HandleDetail)
	mux.HandleFunc("GET /runs/{id}/report", h.HandleReport)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// Run serves srv until ctx is done, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info(ctx, "history UI listening", logger.String("url", "http://"+srv.Addr))
	if bindsAllInterfaces(srv.Addr) {
		log.Warn(ctx, "history UI is reachable from the network", logger.String("addr", srv.Addr))
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info(context.Background(), "history UI shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// bindsAllInterfaces reports whether addr listens on a wildcard host.
func bindsAllInterfaces(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}
