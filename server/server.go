// server/server.go
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dalemusser/inquiry/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/acme/autocert"
)

// errPermissiveKey marks a TLS key file readable by group or others.
var errPermissiveKey = errors.New("overly permissive permissions")

// WithShutdownSignals returns a context canceled on SIGINT or SIGTERM.
// The cancel func also stops signal delivery.
func WithShutdownSignals(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			if logger != nil {
				logger.Info("shutdown signal received", zap.Any("signal", sig))
			}
			cancel()
		case <-ctx.Done():
		}
		// sigCh is left open; nothing reads it after Stop.
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// ListenAndServeWithContext serves handler over plain HTTP, HTTPS with
// cert_file/key_file, or HTTPS with Let's Encrypt (http-01), and blocks until
// ctx is canceled or a listener fails. In both HTTPS modes a second server on
// :80 redirects to HTTPS (and answers ACME challenges for Let's Encrypt).
func ListenAndServeWithContext(
	ctx context.Context,
	cfg *config.CoreConfig,
	handler http.Handler,
	logger *zap.Logger,
) error {
	if cfg == nil {
		return fmt.Errorf("ListenAndServeWithContext: cfg is nil")
	}
	if handler == nil {
		return fmt.Errorf("ListenAndServeWithContext: handler is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := newHTTPServer(cfg, handler, logger)
	httpAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPPort)
	httpsAddr := ":" + strconv.Itoa(cfg.HTTP.HTTPSPort)

	var (
		auxSrv   *http.Server
		baseLn   net.Listener
		ln       net.Listener
		serveErr = make(chan error, 1)
		auxErr   chan error // nil in HTTP mode, so its select case never fires
	)

	startAux := func(h http.Handler, what string) {
		auxSrv = newHTTPServer(cfg, h, logger)
		auxSrv.Addr = ":80"
		auxErr = make(chan error, 1)
		go serveAuxiliary(auxSrv, auxErr)
		logger.Info(what+" server listening", zap.String("addr", auxSrv.Addr))
	}

	switch {
	case !cfg.HTTP.UseHTTPS:
		l, err := net.Listen("tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		baseLn, ln = l, l
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	case cfg.TLS.UseLetsEncrypt:
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.TLS.Domain),
			Cache:      autocert.DirCache(cfg.TLS.LetsEncryptCacheDir),
			Email:      cfg.TLS.LetsEncryptEmail,
		}
		startAux(m.HTTPHandler(httpRedirectHandler()), "ACME + redirect")

		if err := waitForCert(ctx, m, cfg.TLS.Domain, 60*time.Second); err != nil {
			logger.Warn("autocert pre-warm failed; first HTTPS hits may see TLS errors", zap.Error(err))
		}

		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: m.GetCertificate}
		l, err := listenTLS(httpsAddr, tlsCfg)
		if err != nil {
			_ = shutdownAux(context.Background(), auxSrv)
			return err
		}
		srv.TLSConfig = tlsCfg
		baseLn, ln = l.base, l.tls
		logger.Info("HTTPS server (Let's Encrypt) listening",
			zap.String("addr", httpsAddr),
			zap.String("domain", cfg.TLS.Domain))

	default:
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("manual TLS selected but cert_file / key_file not provided")
		}
		if err := validateTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
			if !errors.Is(err, errPermissiveKey) {
				return err
			}
			if cfg.Env == "prod" {
				return fmt.Errorf("production security: %w", err)
			}
			logger.Warn("TLS key file security warning (would block in prod)", zap.Error(err))
		}

		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		startAux(httpRedirectHandler(), "HTTP → HTTPS redirect")

		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{cert}}
		l, err := listenTLS(httpsAddr, tlsCfg)
		if err != nil {
			_ = shutdownAux(context.Background(), auxSrv)
			return err
		}
		srv.TLSConfig = tlsCfg
		baseLn, ln = l.base, l.tls
		logger.Info("HTTPS server (manual TLS) listening",
			zap.String("addr", httpsAddr),
			zap.String("cert_file", cfg.TLS.CertFile))
	}

	go servePrimary(srv, ln, serveErr)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server…")
			// ctx is already done; the shutdown window is its own.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			_ = shutdownAux(shutdownCtx, auxSrv)
			err := srv.Shutdown(shutdownCtx)
			_ = baseLn.Close()
			if err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil

		case err := <-serveErr:
			_ = shutdownAux(context.Background(), auxSrv)
			_ = baseLn.Close()
			if err != nil {
				return fmt.Errorf("primary server error: %w", err)
			}
			return nil

		case err := <-auxErr:
			if err != nil {
				if closeErr := srv.Close(); closeErr != nil {
					logger.Error("failed to close primary server after auxiliary crash", zap.Error(closeErr))
				}
				_ = baseLn.Close()
				return fmt.Errorf("auxiliary server error: %w", err)
			}
			// serveAuxiliary sends once; stop selecting on it.
			auxSrv, auxErr = nil, nil
		}
	}
}

func newHTTPServer(cfg *config.CoreConfig, h http.Handler, logger *zap.Logger) *http.Server {
	s := &http.Server{
		Handler:           h,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		s.ErrorLog = stdlog
	} else {
		logger.Warn("failed to attach stdlib error logger", zap.Error(err))
	}
	return s
}

type tlsListener struct {
	base net.Listener
	tls  net.Listener
}

func listenTLS(addr string, tlsCfg *tls.Config) (tlsListener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return tlsListener{}, fmt.Errorf("listen https %s: %w", addr, err)
	}
	return tlsListener{base: l, tls: tls.NewListener(l, tlsCfg)}, nil
}

func servePrimary(srv *http.Server, ln net.Listener, ch chan<- error) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		ch <- err
		return
	}
	ch <- nil
}

func serveAuxiliary(auxSrv *http.Server, ch chan<- error) {
	if err := auxSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		ch <- err
		return
	}
	ch <- nil
}

func shutdownAux(ctx context.Context, auxSrv *http.Server) error {
	if auxSrv == nil {
		return nil
	}
	return auxSrv.Shutdown(ctx)
}

// httpRedirectHandler sends every request to the https:// form of the same
// host and URI. Hosts or URIs carrying control characters get a 400.
func httpRedirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqURI := r.URL.RequestURI()
		if !isValidHost(r.Host) || !isValidRequestURI(reqURI) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+r.Host+reqURI, http.StatusMovedPermanently)
	})
}

func isValidRequestURI(uri string) bool {
	for _, c := range uri {
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return false
		}
	}
	return true
}

// isValidHost accepts host, host:port, and bracketed IPv6 (with optional zone).
func isValidHost(host string) bool {
	if host == "" || strings.Contains(host, "://") || strings.HasPrefix(host, "/") {
		return false
	}

	hostPart, portStr, err := net.SplitHostPort(host)
	if err != nil {
		hostPart = host
	} else if portStr != "" {
		port, perr := strconv.Atoi(portStr)
		if perr != nil || port <= 0 || port > 65535 {
			return false
		}
	}
	if hostPart == "" {
		return false
	}

	if strings.HasPrefix(hostPart, "[") && strings.HasSuffix(hostPart, "]") {
		inner := hostPart[1 : len(hostPart)-1]
		if i := strings.Index(inner, "%"); i != -1 {
			inner = inner[:i]
		}
		if net.ParseIP(inner) == nil {
			return false
		}
	}

	for _, c := range hostPart {
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}

// validateTLSFiles checks that both files exist and are regular files, and
// on Unix that the key is not group/other accessible (errPermissiveKey).
func validateTLSFiles(certFile, keyFile string) error {
	check := func(kind, path string) (os.FileInfo, error) {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("TLS %s file does not exist: %s", kind, path)
			}
			return nil, fmt.Errorf("cannot access TLS %s file %s: %w", kind, path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("TLS %s path is a directory, not a file: %s", kind, path)
		}
		return info, nil
	}

	if _, err := check("certificate", certFile); err != nil {
		return err
	}
	keyInfo, err := check("key", keyFile)
	if err != nil {
		return err
	}

	if runtime.GOOS != "windows" && keyInfo.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("TLS key file %s has %w %o (recommended: 0600)", keyFile, errPermissiveKey, keyInfo.Mode().Perm())
	}
	return nil
}

// waitForCert polls autocert until host has a certificate, timeout elapses,
// or ctx ends, whichever is first.
func waitForCert(ctx context.Context, m *autocert.Manager, host string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		_, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: host})
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for cert for %q: %w", host, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
