package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bizzytrack/backend/internal/adapters/auth"
	"bizzytrack/backend/internal/adapters/logging"
	"bizzytrack/backend/internal/adapters/persistence"
	"bizzytrack/backend/internal/adapters/postgres"
	"bizzytrack/backend/internal/adapters/telemetry"
	"bizzytrack/backend/internal/ports"
	"bizzytrack/backend/internal/service"
)

const maxJSONBodyBytes int64 = 1 << 20

type API struct {
	authProvider ports.AuthProvider
	service      *service.Service
	logger       *logrus.Logger
	metrics      *telemetry.PrometheusTelemetry
	handler      http.Handler

	cleanup   func() error
	closeOnce sync.Once
	closeErr  error
}

// Dependencies are the collaborators an API routes to. Cleanup runs once on
// Close.
type Dependencies struct {
	AuthProvider ports.AuthProvider
	Service      *service.Service
	Logger       *logrus.Logger
	Metrics      *telemetry.PrometheusTelemetry
	Config       RuntimeConfig
	Cleanup      func() error
}

// OpenRepository opens the store selected by config. The returned closer is
// nil for the file store.
func OpenRepository(config RuntimeConfig) (ports.Repository, func() error, error) {
	switch config.Store {
	case StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := postgres.Open(ctx, config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Apply(ctx, db); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("apply migrations: %w", err), db.Close())
		}
		return postgres.New(db), db.Close, nil
	default:
		repo, err := persistence.NewFileRepository(config.DataFile)
		if err != nil {
			return nil, nil, fmt.Errorf("create repository (%q): %w", config.DataFile, err)
		}
		return repo, nil, nil
	}
}

// NewAuthProvider returns header auth in dev mode and JWT auth otherwise. A
// configured secret wins over the environment.
func NewAuthProvider(config RuntimeConfig) (ports.AuthProvider, error) {
	if config.AuthMode == AuthModeDev {
		return auth.NewDevAuthProvider(), nil
	}
	if secret := strings.TrimSpace(config.JWTSecret); secret != "" {
		return auth.NewJWTAuthProvider(secret)
	}
	return auth.NewJWTAuthProviderFromEnv()
}

func NewRouterWithDependencies(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	api := &API{
		authProvider: deps.AuthProvider,
		service:      deps.Service,
		logger:       logger,
		metrics:      deps.Metrics,
		cleanup:      deps.Cleanup,
	}

	var handler http.Handler = http.HandlerFunc(api.route)
	handler = rateLimit(logger, newClientLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst), handler)
	handler = withCORS(newCORSPolicy(deps.Config), handler)
	if deps.Metrics != nil {
		handler = deps.Metrics.InstrumentHandler(handler)
	}
	handler = accessLog(logger, handler)
	api.handler = recoverPanics(logger, handler)
	return api
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close releases the store and stops background jobs. Later calls return
// the first result.
func (a *API) Close() error {
	a.closeOnce.Do(func() {
		if a.cleanup != nil {
			a.closeErr = a.cleanup()
		}
	})
	return a.closeErr
}

func (a *API) route(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.URL.Path {
	case "/healthz":
		a.healthz(w, r)
		return
	case "/metrics":
		if a.metrics == nil {
			a.notFound(w)
			return
		}
		a.metrics.Handler().ServeHTTP(w, r)
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") {
		a.notFound(w)
		return
	}

	authCtx, err := a.authProvider.FromRequest(r)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	segments := splitPath(r.URL.Path)
	switch {
	case isCollectionRoute(segments, "businesses"):
		a.handleBusinesses(w, r, authCtx)
	case isItemRoute(segments, "businesses"):
		a.handleBusinessByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "staff"):
		a.handleStaff(w, r, authCtx)
	case isItemRoute(segments, "staff"):
		a.handleStaffByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "departments"):
		a.handleDepartments(w, r, authCtx)
	case isItemRoute(segments, "departments"):
		a.handleDepartmentByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "customers"):
		a.handleCustomers(w, r, authCtx)
	case isItemRoute(segments, "customers"):
		a.handleCustomerByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "jobs"):
		a.handleJobs(w, r, authCtx)
	case isItemRoute(segments, "jobs"):
		a.handleJobByID(w, r, authCtx, segments)
	case isItemRoute(segments, "handoffs"):
		a.handleHandoffByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "inventory"):
		a.handleInventory(w, r, authCtx)
	case isItemRoute(segments, "inventory"):
		a.handleInventoryByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "pricing-rules"):
		a.handlePricingRules(w, r, authCtx)
	case isItemRoute(segments, "pricing-rules"):
		a.handlePricingRuleByID(w, r, authCtx, segments)
	case isExactRoute(segments, "api", "pos", "quote"):
		a.handleQuote(w, r, authCtx)
	case isCollectionRoute(segments, "sales"):
		a.handleSales(w, r, authCtx)
	case isItemRoute(segments, "sales"):
		a.handleSaleByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "invoices"):
		a.handleInvoices(w, r, authCtx)
	case isItemRoute(segments, "invoices"):
		a.handleInvoiceByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "accounts"):
		a.handleAccounts(w, r, authCtx)
	case isItemRoute(segments, "accounts"):
		a.handleAccountByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "journal-entries"):
		a.handleJournalEntries(w, r, authCtx)
	case isItemRoute(segments, "journal-entries"):
		a.handleJournalEntryByID(w, r, authCtx, segments)
	case len(segments) == 3 && segments[1] == "reports":
		a.handleReport(w, r, authCtx, segments[2])
	case isCollectionRoute(segments, "catalog"):
		a.handleCatalog(w, r, authCtx)
	default:
		a.notFound(w)
	}
}
