package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"bizzytrack/backend/internal/adapters/logging"
	"bizzytrack/backend/internal/adapters/persistence"
	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/httpapi"
	"bizzytrack/backend/internal/ports"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv(envFileVar, "")
	if err := loadEnvFile(""); err != nil {
		t.Fatalf("expected missing default .env to be ignored, got %v", err)
	}

	fromVar := filepath.Join(dir, "var.env")
	fromFlag := filepath.Join(dir, "flag.env")
	writeFile(t, fromVar, "BIZZY_TEST_SOURCE=var\n")
	writeFile(t, fromFlag, "BIZZY_TEST_SOURCE=flag\n")

	unsetEnv(t, "BIZZY_TEST_SOURCE")
	t.Setenv(envFileVar, fromVar)
	if err := loadEnvFile(fromFlag); err != nil {
		t.Fatalf("load flag env file: %v", err)
	}
	if got := os.Getenv("BIZZY_TEST_SOURCE"); got != "flag" {
		t.Fatalf("expected the flag path to win over %s, got %q", envFileVar, got)
	}

	unsetEnv(t, "BIZZY_TEST_SOURCE")
	if err := loadEnvFile(""); err != nil {
		t.Fatalf("load env file from variable: %v", err)
	}
	if got := os.Getenv("BIZZY_TEST_SOURCE"); got != "var" {
		t.Fatalf("expected value from %s, got %q", envFileVar, got)
	}

	if err := loadEnvFile(filepath.Join(dir, "missing.env")); err == nil {
		t.Fatal("expected explicit missing env file to fail")
	}
}

func TestAssembleFileStoreWithReconciler(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "bizzy-data.json")
	logger, messages := newChannelLogger()

	api, err := assemble(fileConfig(dataFile, "@every 1h"), logger)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	rec := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/businesses", strings.NewReader(`{"name":"Main Street Cycles","currency":"USD","timezone":"UTC","tax_rate_pct":8}`))
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Role", domain.RoleOwner)
	api.ServeHTTP(rec, request)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected business created, got %d body=%s", rec.Code, rec.Body.String())
	}
	if err := api.Close(); err != nil {
		t.Fatalf("close api: %v", err)
	}

	logged := drainMessages(messages)
	for _, want := range []string{"ledger reconciliation scheduled", "server assembled"} {
		if !contains(logged, want) {
			t.Fatalf("expected %q in %v", want, logged)
		}
	}

	reopened, err := persistence.NewFileRepository(dataFile)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	businesses, err := reopened.ListBusinesses(context.Background())
	if err != nil {
		t.Fatalf("list businesses: %v", err)
	}
	if len(businesses) != 1 || businesses[0].Name != "Main Street Cycles" {
		t.Fatalf("expected the file store to hold the new business, got %+v", businesses)
	}
}

func TestAssembleSkipsReconcilerWithoutSchedule(t *testing.T) {
	logger, messages := newChannelLogger()

	api, err := assemble(fileConfig(filepath.Join(t.TempDir(), "data.json"), ""), logger)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	t.Cleanup(func() { _ = api.Close() })

	if contains(drainMessages(messages), "ledger reconciliation scheduled") {
		t.Fatal("expected no reconciler without a schedule")
	}
}

func TestAssemblePostgresStoreSurfacesConnectFailure(t *testing.T) {
	config := httpapi.RuntimeConfig{
		Mode: httpapi.RuntimeModeDevelopment,
		Settings: httpapi.Settings{
			Store:       httpapi.StorePostgres,
			DatabaseURL: "postgres://%zz",
			AuthMode:    httpapi.AuthModeDev,
		},
	}

	_, err := assemble(config, logging.Discard())
	if err == nil || !strings.Contains(err.Error(), "open postgres store") {
		t.Fatalf("expected postgres open failure, got %v", err)
	}
}

func TestAssembleReleasesStoreOnLaterFailure(t *testing.T) {
	previousOpenRepository := openRepository
	t.Cleanup(func() { openRepository = previousOpenRepository })

	closed := 0
	openRepository = func(config httpapi.RuntimeConfig) (ports.Repository, func() error, error) {
		repo, err := persistence.NewFileRepository(config.DataFile)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error {
			closed++
			return nil
		}, nil
	}

	if _, err := assemble(fileConfig(filepath.Join(t.TempDir(), "data.json"), "every tuesday"), logging.Discard()); err == nil {
		t.Fatal("expected a bad reconcile schedule to fail")
	}
	if closed != 1 {
		t.Fatalf("expected the store to be closed once after a schedule failure, got %d", closed)
	}

	t.Setenv("BIZZY_JWT_SECRET", "")
	t.Setenv("DEV_MODE", "false")
	jwtConfig := fileConfig(filepath.Join(t.TempDir(), "data.json"), "")
	jwtConfig.Mode = httpapi.RuntimeModeProduction
	jwtConfig.AuthMode = httpapi.AuthModeJWT
	if _, err := assemble(jwtConfig, logging.Discard()); err == nil {
		t.Fatal("expected jwt auth without a secret to fail")
	}
	if closed != 2 {
		t.Fatalf("expected the store to be closed after an auth failure, got %d", closed)
	}
}

func TestRootCommandServesWithConfiguredLogger(t *testing.T) {
	restoreMainVars(t)
	dir := t.TempDir()
	t.Setenv(envFileVar, "")
	envPath := filepath.Join(dir, "serve.env")
	writeFile(t, envPath, "BIZZY_TEST_SERVE=yes\n")
	unsetEnv(t, "BIZZY_TEST_SERVE")

	loadRuntimeConfig = func() (httpapi.RuntimeConfig, error) {
		if os.Getenv("BIZZY_TEST_SERVE") != "yes" {
			t.Fatal("expected the env file to load before runtime config")
		}
		config := fileConfig(filepath.Join(dir, "data.json"), "")
		config.LogLevel = "error"
		return config, nil
	}

	served := false
	runServer = func(addr string, handler http.Handler, start func(*http.Server, net.Listener) error, logger logrus.FieldLogger) error {
		served = true
		if addr != "127.0.0.1:9181" {
			t.Fatalf("expected --addr to override the listen address, got %s", addr)
		}
		api, ok := handler.(*httpapi.API)
		if !ok || start == nil || logger == nil {
			t.Fatalf("expected assembled API, start func and logger, got %T", handler)
		}
		return api.Close()
	}

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--env-file", envPath, "--addr", "127.0.0.1:9181", "--log-level", "info"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !served {
		t.Fatal("expected the command to start the server")
	}

	logged := stderr.String()
	for _, want := range []string{"development mode", "header-based dev auth", "server assembled", "store=file"} {
		if !strings.Contains(logged, want) {
			t.Fatalf("expected %q on the configured logger, got %q", want, logged)
		}
	}
}

func TestRootCommandBootstrapFailures(t *testing.T) {
	restoreMainVars(t)
	t.Chdir(t.TempDir())
	t.Setenv(envFileVar, "")

	runServer = func(string, http.Handler, func(*http.Server, net.Listener) error, logrus.FieldLogger) error {
		t.Fatal("expected no server on bootstrap failure")
		return nil
	}
	loadRuntimeConfig = func() (httpapi.RuntimeConfig, error) {
		return fileConfig(filepath.Join(t.TempDir(), "data.json"), ""), nil
	}

	cases := []struct {
		name   string
		args   []string
		config func() (httpapi.RuntimeConfig, error)
		want   string
	}{
		{name: "missing env file", args: []string{"--env-file", "nope.env"}, want: "load nope.env"},
		{name: "bad log level", args: []string{"--log-level", "chatty"}, want: "parse log level"},
		{name: "config error", config: func() (httpapi.RuntimeConfig, error) {
			return httpapi.RuntimeConfig{}, errors.New("BIZZY_STORE must be file or postgres")
		}, want: "load runtime config"},
		{name: "stray argument", args: []string{"serve"}, want: "unknown command"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.config != nil {
				previous := loadRuntimeConfig
				loadRuntimeConfig = tc.config
				t.Cleanup(func() { loadRuntimeConfig = previous })
			}
			cmd := newRootCmd()
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tc.args)
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestMainExitsOnServerFailure(t *testing.T) {
	restoreMainVars(t)
	previousArgs := os.Args
	t.Cleanup(func() { os.Args = previousArgs })
	os.Args = []string{"bizzytrack"}
	t.Chdir(t.TempDir())
	t.Setenv(envFileVar, "")

	loadRuntimeConfig = func() (httpapi.RuntimeConfig, error) {
		config := fileConfig(filepath.Join(t.TempDir(), "data.json"), "")
		config.LogLevel = "panic"
		return config, nil
	}
	runServer = func(_ string, handler http.Handler, _ func(*http.Server, net.Listener) error, _ logrus.FieldLogger) error {
		return errors.Join(errors.New("address in use"), closeResources(handler))
	}

	exitCode := -1
	exitProcess = func(code int) { exitCode = code }
	main()
	if exitCode != 1 {
		t.Fatalf("expected exit code 1 on server failure, got %d", exitCode)
	}
}

func TestRunConfiguresServer(t *testing.T) {
	handler := http.NewServeMux()
	logger, messages := newChannelLogger()

	err := run("127.0.0.1:0", handler, func(server *http.Server, _ net.Listener) error {
		if server.Handler != handler {
			t.Fatal("unexpected server handler")
		}
		if server.ReadHeaderTimeout != 10*time.Second || server.ReadTimeout != 15*time.Second ||
			server.WriteTimeout != 15*time.Second || server.IdleTimeout != 60*time.Second {
			t.Fatalf("unexpected server timeouts: %+v", server)
		}
		return http.ErrServerClosed
	}, logger)
	if err != nil {
		t.Fatalf("expected nil on server closed, got %v", err)
	}
	if !contains(drainMessages(messages), "bizzytrack backend listening") {
		t.Fatal("expected listen message")
	}

	if err := run("127.0.0.1:0", handler, nil, logger); err == nil {
		t.Fatal("expected error for nil start function")
	}
}

func TestRunClosesResourcesWhenServeFails(t *testing.T) {
	expected := errors.New("serve failure")
	handler := &testClosableHandler{Handler: http.NewServeMux()}

	err := run("127.0.0.1:0", handler, func(*http.Server, net.Listener) error {
		return expected
	}, logging.Discard())
	if !errors.Is(err, expected) {
		t.Fatalf("expected serve error, got %v", err)
	}
	if !handler.closed {
		t.Fatal("expected resources to be released after a serve failure")
	}
}

func TestRunShutdownClosesAssembledAPI(t *testing.T) {
	signals := captureSignals(t)
	dataFile := filepath.Join(t.TempDir(), "bizzy-data.json")
	logger, messages := newChannelLogger()

	api, err := assemble(fileConfig(dataFile, "@daily"), logger)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	listenAddr := make(chan string, 1)
	runErrors := make(chan error, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", api, func(server *http.Server, listener net.Listener) error {
			listenAddr <- listener.Addr().String()
			return server.Serve(listener)
		}, logger)
	}()

	signalChannel := <-signals
	baseURL := "http://" + <-listenAddr
	resp := getWithin(t, baseURL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}

	signalChannel <- syscall.SIGTERM
	if err := <-runErrors; err != nil {
		t.Fatalf("expected graceful shutdown, got %v", err)
	}

	logged := drainMessages(messages)
	for _, want := range []string{"shutdown signal received", "server exited gracefully", "resource cleanup completed"} {
		if !contains(logged, want) {
			t.Fatalf("expected %q in %v", want, logged)
		}
	}
	if err := api.Close(); err != nil {
		t.Fatalf("expected repeated close to be a no-op, got %v", err)
	}
}

func TestRunLogsCleanupFailure(t *testing.T) {
	signals := captureSignals(t)
	logger, messages := newChannelLogger()
	handler := &testClosableHandler{Handler: http.NewServeMux(), closeErr: errors.New("cleanup failed")}

	release := make(chan struct{})
	runErrors := make(chan error, 1)
	go func() {
		runErrors <- run("127.0.0.1:0", handler, func(*http.Server, net.Listener) error {
			<-release
			return nil
		}, logger)
	}()

	(<-signals) <- syscall.SIGINT
	close(release)
	if err := <-runErrors; err != nil {
		t.Fatalf("expected shutdown to continue when cleanup fails, got %v", err)
	}
	if !contains(drainMessages(messages), "resource cleanup failed") {
		t.Fatal("expected cleanup failure to be logged")
	}
}

func TestLogStartupWarnings(t *testing.T) {
	logger, messages := newChannelLogger()

	logStartupWarnings(httpapi.RuntimeConfig{Mode: httpapi.RuntimeModeProduction}, logger)
	if logged := drainMessages(messages); len(logged) != 0 {
		t.Fatalf("expected no warnings in production mode, got %v", logged)
	}

	logStartupWarnings(httpapi.RuntimeConfig{
		Mode:     httpapi.RuntimeModeDevelopment,
		Settings: httpapi.Settings{AuthMode: httpapi.AuthModeJWT},
	}, logger)
	logged := drainMessages(messages)
	if !contains(logged, "development mode") || contains(logged, "header-based dev auth") {
		t.Fatalf("expected dev mode warning without the dev auth note, got %v", logged)
	}
}

func fileConfig(dataFile, schedule string) httpapi.RuntimeConfig {
	return httpapi.RuntimeConfig{
		Mode:               httpapi.RuntimeModeDevelopment,
		CORSAllowedOrigins: []string{"*"},
		AllowAnyCORSOrigin: true,
		Settings: httpapi.Settings{
			Store:             httpapi.StoreFile,
			DataFile:          dataFile,
			AuthMode:          httpapi.AuthModeDev,
			LogLevel:          "info",
			ReconcileSchedule: schedule,
		},
	}
}

func restoreMainVars(t *testing.T) {
	t.Helper()
	previousRunServer := runServer
	previousLoadRuntimeConfig := loadRuntimeConfig
	previousOpenRepository := openRepository
	previousExitProcess := exitProcess
	t.Cleanup(func() {
		runServer = previousRunServer
		loadRuntimeConfig = previousLoadRuntimeConfig
		openRepository = previousOpenRepository
		exitProcess = previousExitProcess
	})
}

func captureSignals(t *testing.T) <-chan chan<- os.Signal {
	t.Helper()
	previousSignalNotify := signalNotify
	previousSignalStop := signalStop
	t.Cleanup(func() {
		signalNotify = previousSignalNotify
		signalStop = previousSignalStop
	})

	registered := make(chan chan<- os.Signal, 1)
	signalNotify = func(c chan<- os.Signal, _ ...os.Signal) {
		registered <- c
	}
	signalStop = func(chan<- os.Signal) {}
	return registered
}

// messageHook forwards log messages so tests can wait on them across
// goroutines.
type messageHook struct {
	messages chan string
}

func (h messageHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h messageHook) Fire(entry *logrus.Entry) error {
	select {
	case h.messages <- entry.Message:
	default:
	}
	return nil
}

func newChannelLogger() (*logrus.Logger, chan string) {
	logger := logging.Discard()
	messages := make(chan string, 64)
	logger.AddHook(messageHook{messages: messages})
	return logger, messages
}

func drainMessages(messages <-chan string) []string {
	entries := make([]string, 0, 8)
	for {
		select {
		case entry := <-messages:
			entries = append(entries, entry)
		default:
			return entries
		}
	}
}

func contains(entries []string, substring string) bool {
	for _, entry := range entries {
		if strings.Contains(entry, substring) {
			return true
		}
	}
	return false
}

type testClosableHandler struct {
	http.Handler
	closeErr error
	closed   bool
}

func (h *testClosableHandler) Close() error {
	h.closed = true
	return h.closeErr
}

func getWithin(t *testing.T, url string) *http.Response {
	t.Helper()
	client := &http.Client{Timeout: 200 * time.Millisecond}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			cancel()
			t.Fatalf("build request: %v", err)
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			cancel()
			return resp
		}
		cancel()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not answer %s", url)
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}
