package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/merkle"
	"github.com/Rdilshan/e-voting-web-sub000/provision"
	stg "github.com/Rdilshan/e-voting-web-sub000/storage"
	"github.com/Rdilshan/e-voting-web-sub000/types"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
)

const (
	maxRequestBodyLog  = 512      // Maximum length of request body to log
	maxRequestBodySize = 10 << 20 // Maximum accepted request body
	treeCacheSize      = 64       // Eligibility trees kept to serve proofs
	readTimeout        = 45 * time.Second
)

// Provisioner runs the provisioning workflow. *provision.Provisioner
// implements it.
type Provisioner interface {
	Provision(ctx context.Context, req *types.ElectionRequest) *provision.Result
}

// ElectionReader reads elections from the chain. *web3.Contracts
// implements it.
type ElectionReader interface {
	ElectionData(ctx context.Context, electionID *big.Int) (*types.OnchainElectionData, error)
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host        string
	Port        int
	Storage     *stg.Storage
	Provisioner Provisioner
	Elections   ElectionReader     // Optional: enables the on-chain read-back endpoint
	Policy      rpc.RetryPolicy    // Retry policy of on-chain reads
	Network     string             // web3 network shortname
	ChainID     uint64             // Optional: overrides the network chain ID
	Contracts   *ContractAddresses // Optional: overrides the network addresses
}

// API type represents the API HTTP server.
type API struct {
	router      *chi.Mux
	server      *http.Server
	storage     *stg.Storage
	provisioner Provisioner
	elections   ElectionReader
	policy      rpc.RetryPolicy
	network     string
	chainID     uint64
	contracts   *ContractAddresses
	trees       *lru.Cache[string, *merkle.Tree]
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	a, err := newAPI(conf)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// newAPI validates conf and builds the router without serving it.
func newAPI(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Provisioner == nil {
		return nil, fmt.Errorf("missing provisioner")
	}
	trees, err := lru.New[string, *merkle.Tree](treeCacheSize)
	if err != nil {
		return nil, err
	}
	a := &API{
		storage:     conf.Storage,
		provisioner: conf.Provisioner,
		elections:   conf.Elections,
		policy:      conf.Policy,
		network:     conf.Network,
		chainID:     conf.ChainID,
		contracts:   conf.Contracts,
		trees:       trees,
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Close stops the HTTP server, waiting for in-flight requests until ctx
// is done.
func (a *API) Close(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// provisioning outlives the read timeout
	log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "POST")
	a.router.Post(ElectionsEndpoint, a.newElection)

	a.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(readTimeout))
		log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
		r.Get(InfoEndpoint, a.info)
		log.Infow("register handler", "endpoint", ElectionsEndpoint, "method", "GET")
		r.Get(ElectionsEndpoint, a.listElections)
		log.Infow("register handler", "endpoint", ElectionEndpoint, "method", "GET")
		r.Get(ElectionEndpoint, a.election)
		log.Infow("register handler", "endpoint", ElectionOnchainEndpoint, "method", "GET")
		r.Get(ElectionOnchainEndpoint, a.onchainElection)
		log.Infow("register handler", "endpoint", ElectionProofEndpoint, "method", "GET")
		r.Get(ElectionProofEndpoint, a.eligibilityProof)
		log.Infow("register handler", "endpoint", ProvisioningEndpoint, "method", "GET")
		r.Get(ProvisioningEndpoint, a.provisioningRun)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(DefaultLoggingConfig()))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.ThrottleBacklog(100, 5000, 60*time.Second))

	a.registerHandlers()
}
