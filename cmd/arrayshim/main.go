package main

import (
	"context"
	"crypto/tls"
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/term"

	"github.com/paradigm4/arrayshim/internal/arraydb"
	"github.com/paradigm4/arrayshim/internal/config"
	"github.com/paradigm4/arrayshim/internal/httpapi"
	"github.com/paradigm4/arrayshim/internal/observability"
	"github.com/paradigm4/arrayshim/internal/session"
)

//go:embed README.md
var readmeMarkdown string

var bannerLines = []string{
	`                                      __    _           `,
	`  ____ ______________ ___  __________/ /_  (_)___ ___   `,
	` / __ '/ ___/ ___/ __ '/ / / / ___/ __ \/ / __ \/ __ \  `,
	`/ /_/ / /  / /  / /_/ / /_/ (__  ) / / / / / / / / / /  `,
	`\__,_/_/  /_/   \__,_/\__, /____/_/ /_/_/_/ /_/_/ /_/   `,
	`                     /____/                              `,
}

func printBanner() {
	teal, _ := colorful.Hex("#00CED1")
	purple, _ := colorful.Hex("#9B30FF")
	bgColor := lipgloss.Color("#1a1a2e")

	maxWidth := len(bannerLines[0])

	var lines []string
	for _, line := range bannerLines {
		var result strings.Builder
		for i, r := range line {
			t := float64(i) / float64(maxWidth-1)
			c := teal.BlendLuv(purple, t)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(c.Hex())).
				Background(bgColor).
				Bold(true)
			result.WriteString(style.Render(string(r)))
		}
		lines = append(lines, result.String())
	}

	box := lipgloss.NewStyle().
		Background(bgColor).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	fmt.Println(box)
	fmt.Println()
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00CED1"))
	descStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	flagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9B30FF")).Bold(true)
)

func printUsage() {
	fmt.Println(titleStyle.Render("Usage:"))
	fmt.Print("  arrayshim ")
	flag.VisitAll(func(f *flag.Flag) {
		fmt.Printf("%s ", flagStyle.Render("-"+f.Name))
	})
	fmt.Println()
	fmt.Println()

	fmt.Println(titleStyle.Render("Options:"))
	flag.VisitAll(func(f *flag.Flag) {
		fmt.Printf("  %s\n      %s\n", flagStyle.Render("-"+f.Name), descStyle.Render(f.Usage))
	})
	fmt.Println()

	fmt.Println(descStyle.Render("Run 'arrayshim -h' for full documentation."))
}

func printFullDocs() {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		fmt.Println(readmeMarkdown)
		return
	}
	out, err := renderer.Render(readmeMarkdown)
	if err != nil {
		fmt.Println(readmeMarkdown)
		return
	}
	fmt.Print(out)
}

// buildVersion is printed by -v and is overridden at build time with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	showHelp := flag.Bool("h", false, "show full documentation and exit")
	showVersion := flag.Bool("v", false, "print the version and exit")
	foreground := flag.Bool("f", false, "foreground mode: do not write the pidfile (the process never daemonizes)")
	bindAddr := flag.String("a", "", "bind address for the main listener")
	ports := flag.String("p", "8080", "comma-separated list of ports to listen on")
	docRoot := flag.String("r", ".", "document root for static file serving")
	backendHost := flag.String("n", "localhost", "backend host")
	backendPort := flag.Int("s", 1239, "backend port")
	tmpDir := flag.String("t", os.TempDir(), "temp directory for session buffers")
	maxSessions := flag.Int("m", 10, "maximum concurrent sessions (<=100)")
	timeoutSecs := flag.Int("o", 60, "session timeout in seconds (>=60)")
	saveInstanceID := flag.Int("i", 0, "save-target instance id (>=0)")
	configPath := flag.String("config", "", "path to an optional arrayshim.json config file")
	metricsListen := flag.String("metrics-listen", "", "shorthand for enabling Prometheus metrics on host:port[/path]")
	jsonLogs := flag.Bool("json-logs", false, "emit logs as JSON instead of text")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println(buildVersion)
		os.Exit(0)
	}
	if *showHelp {
		printFullDocs()
		os.Exit(0)
	}

	var handler slog.Handler
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	printBanner()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.ReadFile(*configPath)
		if err != nil {
			logger.Error("failed to read config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg = &config.Config{}
	}
	if cfg.Prometheus == nil && *metricsListen != "" {
		cfg.Prometheus = config.ParsePrometheusListen(*metricsListen)
	}

	secrets, err := config.NewSecretCacheFromEnv(ctx)
	if err != nil {
		logger.Warn("secrets cache unavailable, AWS-backed secret refs will fail", "error", err)
	}

	// Per the external interface, a relative cert_path/cert_private_key_path
	// resolves against the document root's parent directory.
	docRootParent := filepath.Dir(filepath.Clean(*docRoot))
	tlsFsys := os.DirFS(docRootParent)
	resolveCertPath := func(p string) string { return filepath.Join(docRootParent, p) }

	if err := cfg.Validate(ctx, secrets, tlsFsys); err != nil {
		logger.Error("config validation failed", "error", err)
		os.Exit(1)
	}

	var tlsConfig *tls.Config
	if cfg.TLS != nil {
		result, err := cfg.TLS.NewTLS(tlsFsys, resolveCertPath)
		if err != nil {
			logger.Error("failed to set up TLS", "error", err)
			os.Exit(1)
		}
		tlsConfig = result.Config
		for _, written := range result.WrittenFiles {
			logger.Info("wrote generated TLS certificate", "path", written)
		}
	}

	user, password := resolveBackendCredentials(ctx, cfg, secrets)

	sessionTimeout := time.Duration(*timeoutSecs) * time.Second
	if cfg.SessionTimeout != nil {
		sessionTimeout = cfg.SessionTimeout.Duration()
	}

	store, err := session.NewStore(*maxSessions, arraydb.NetDialer{DialTimeout: 10 * time.Second}, *tmpDir, sessionTimeout, *saveInstanceID, false)
	if err != nil {
		logger.Error("failed to create session store", "error", err)
		os.Exit(1)
	}

	metrics := observability.DefaultMetrics()
	tracer, err := observability.NewTracerProvider(ctx, cfg.OpenTelemetry)
	if err != nil {
		logger.Error("failed to start tracer", "error", err)
		os.Exit(1)
	}

	srv := httpapi.NewServer(store, *backendHost, *backendPort, *docRoot, metrics, tracer, logger)
	srv.DefaultUser = user
	srv.DefaultPassword = password

	metricsServer := observability.NewMetricsServer(cfg.Prometheus, srv, logger)
	if metricsServer != nil {
		if err := metricsServer.Start(); err != nil {
			logger.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		logger.Info("metrics listening", "addr", metricsServer.Addr())
	}

	// There is no portable fork() in Go: -f's non-foreground mode writes a
	// pidfile for process managers that want one, but the process itself
	// stays attached to its controlling terminal. Operators deploying this
	// without -f are expected to run it under systemd/supervisord, which
	// makes daemonizing inside the binary unnecessary in practice.
	if !*foreground {
		if err := writePidFile("/var/run/arrayshim.pid"); err != nil {
			logger.Warn("failed to write pidfile", "error", err)
		}
	}

	listeners, err := startListeners(srv, *bindAddr, *ports, tlsConfig)
	if err != nil {
		logger.Error("failed to start listeners", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func(l *httpapi.Listener) {
			logger.Info("listening", "addr", l.Addr())
			if err := l.Serve(); err != nil {
				errCh <- err
			}
		}(l)
	}

	go func() {
		<-ctx.Done()
		store.CleanupAll()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("listener error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpapi.ShutdownTimeout)
	defer cancel()
	for _, l := range listeners {
		_ = l.Shutdown(shutdownCtx)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	_ = tracer.Shutdown(shutdownCtx)
	store.CleanupAll()
}

// resolveBackendCredentials resolves the default backend credentials a
// /new_session call without user/password query params would otherwise
// lack entirely. Per the external interface, user/password stay optional
// at the HTTP layer; this only supplies a fallback when the operator has
// configured one centrally instead of trusting every caller to pass them.
func resolveBackendCredentials(ctx context.Context, cfg *config.Config, secrets *config.SecretCache) (string, string) {
	if cfg == nil || cfg.BackendCredentials == nil || secrets == nil {
		return "", ""
	}
	user, err := secrets.Get(ctx, cfg.BackendCredentials.Username)
	if err != nil {
		return "", ""
	}
	password, err := secrets.Get(ctx, cfg.BackendCredentials.Password)
	if err != nil {
		return "", ""
	}
	return user, password
}

func startListeners(srv *httpapi.Server, bindAddr, portsList string, tlsConfig *tls.Config) ([]*httpapi.Listener, error) {
	var listeners []*httpapi.Listener
	for _, p := range strings.Split(portsList, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := strconv.Atoi(p); err != nil {
			continue
		}
		addr := fmt.Sprintf("%s:%s", bindAddr, p)
		l, err := srv.NewListener(addr, tlsConfig)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Shutdown(context.Background())
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}
	if len(listeners) == 0 {
		return nil, fmt.Errorf("no valid ports in %q", portsList)
	}
	return listeners, nil
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
