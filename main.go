package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/config"
	"github.com/lazyops/lazyops/pkg/gui"
	"github.com/lazyops/lazyops/pkg/logging"
	"github.com/lazyops/lazyops/pkg/metrics"
	"github.com/lazyops/lazyops/pkg/orchestrator"
	"github.com/lazyops/lazyops/pkg/session"
	"github.com/lazyops/lazyops/pkg/upgrade"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("lazyops", flag.ContinueOnError)
	fs.Usage = printHelp
	configPath := fs.String("config", config.DefaultPath(), "config file")
	metricsAddr := fs.String("metrics-addr", "", "expose Prometheus metrics on this address")
	showVersion := fs.Bool("version", false, "show version")
	fs.BoolVar(showVersion, "v", false, "show version")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println("lazyops", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := session.NewStore(cfg.TokenFile)
	if err := store.Load(); err != nil {
		return err
	}
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, *metricsAddr, logger); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	switch cmd := fs.Arg(0); cmd {
	case "":
		return runConsole(ctx, cfg, store, m, logger)
	case "login":
		return runLogin(ctx, fs.Args()[1:], cfg, store, m, logger)
	case "upgrade":
		return upgrade.New(logger).Upgrade(ctx, version, "")
	case "logout":
		had, err := store.Clear()
		if err != nil {
			return err
		}
		if had {
			fmt.Println("Signed out.")
		}
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newClient(cfg config.Config, store *session.Store, interceptor api.Interceptor, m *metrics.Metrics) (*api.Client, error) {
	return api.New(cfg.APIURL,
		api.WithHTTPClient(&http.Client{Transport: m.Transport(nil)}),
		api.WithTokenSource(store),
		api.WithInterceptor(interceptor),
		api.WithTimeout(api.ClassStatus, cfg.Timeouts.Status),
		api.WithTimeout(api.ClassBranches, cfg.Timeouts.Branches),
		api.WithTimeout(api.ClassDeploy, cfg.Timeouts.Deploy),
		api.WithTimeout(api.ClassKill, cfg.Timeouts.Kill),
		api.WithTimeout(api.ClassSearch, cfg.Timeouts.Search),
		api.WithTimeout(api.ClassDelete, cfg.Timeouts.Delete),
		api.WithTimeout(api.ClassDefault, cfg.Timeouts.Default),
	)
}

func runConsole(ctx context.Context, cfg config.Config, store *session.Store, m *metrics.Metrics, logger *zap.Logger) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("lazyops needs an interactive terminal")
	}

	ui, err := gui.New(gui.Options{
		Version:  version,
		APIURL:   cfg.APIURL,
		Store:    store,
		Logger:   logger,
		PageSize: cfg.PageSize,
	})
	if err != nil {
		return err
	}
	interceptor := session.NewInterceptor(store, ui, ui.SessionExpired, logger)
	client, err := newClient(cfg, store, interceptor, m)
	if err != nil {
		ui.Close()
		return err
	}
	ui.Attach(client,
		orchestrator.WithLogger(logger),
		orchestrator.WithRecorder(m),
		orchestrator.WithRollbackPrefix(cfg.RollbackBranchPrefix),
		orchestrator.WithStatusConcurrency(cfg.StatusConcurrency),
	)
	logger.Info("console started", zap.String("version", version), zap.String("api", cfg.APIURL))

	errCh := make(chan error, 1)
	go func() {
		errCh <- ui.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
		ui.Quit()
		return <-errCh
	}
}

// stderrNotifier prints interceptor toasts when there is no console.
type stderrNotifier struct{}

func (stderrNotifier) Toast(msg string) {
	fmt.Fprintln(os.Stderr, "❌", msg)
}

func runLogin(ctx context.Context, args []string, cfg config.Config, store *session.Store, m *metrics.Metrics, logger *zap.Logger) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		*email = strings.TrimSpace(line)
	}
	if *email == "" {
		return errors.New("email is required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	client, err := newClient(cfg, store, session.NewInterceptor(store, stderrNotifier{}, nil, logger), m)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, string(password))
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if err := store.Save(resp.Token); err != nil {
		return err
	}
	logger.Info("signed in", zap.String("email", *email))
	fmt.Println("Signed in as", *email)
	return nil
}

func printHelp() {
	fmt.Println(`LazyOps - a terminal console for deployment management

Usage:
  lazyops [flags]              Start the console
  lazyops login [--email a@b]  Sign in and store the session token
  lazyops logout               Forget the stored session token
  lazyops upgrade              Install the latest release over this binary

Flags:
  --config <path>        Config file (default ~/.config/lazyops/config.yml)
  --metrics-addr <addr>  Expose Prometheus metrics, e.g. 127.0.0.1:9464
  -h, --help             Show this help message
  -v, --version          Show version information

Keyboard Shortcuts:
  ↑/↓         Move selection
  Tab         Applications / Deployments / Audit log
  d           Deploy a branch
  k           Kill the running process
  R           Roll back to the selected deployment
  n           Register a new application
  e           Edit the application or deployment notes
  x           Delete
  r           Reload lists and statuses
  s           Refresh the selected application status
  ?           Show help overlay
  q           Quit`)
}
