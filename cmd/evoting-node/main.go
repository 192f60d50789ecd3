package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Rdilshan/e-voting-web-sub000/api"
	"github.com/Rdilshan/e-voting-web-sub000/archive"
	"github.com/Rdilshan/e-voting-web-sub000/config"
	"github.com/Rdilshan/e-voting-web-sub000/db/metadb"
	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/mirror"
	"github.com/Rdilshan/e-voting-web-sub000/mirror/mongodb"
	"github.com/Rdilshan/e-voting-web-sub000/mirror/postgres"
	"github.com/Rdilshan/e-voting-web-sub000/provision"
	"github.com/Rdilshan/e-voting-web-sub000/registry"
	"github.com/Rdilshan/e-voting-web-sub000/service"
	"github.com/Rdilshan/e-voting-web-sub000/storage"
	"github.com/Rdilshan/e-voting-web-sub000/web3"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
)

// Services holds all the running services
type Services struct {
	Contracts *web3.Contracts
	Storage   *storage.Storage
	Mirror    mirror.Mirror
	API       *service.APIService
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting evoting-node", "version", Version)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	<-ctx.Done()
	log.Infow("received signal, shutting down")
}

// getContractAddresses returns the contract addresses based on configuration
func getContractAddresses(cfg *Config) (*web3.Addresses, *api.ContractAddresses) {
	networkConfig := config.DefaultConfig[cfg.Web3.Network]

	registryAddr := networkConfig.VoterRegistrySmartContract
	if cfg.Web3.RegistryAddr != "" {
		registryAddr = cfg.Web3.RegistryAddr
	}
	electionsAddr := networkConfig.ElectionsSmartContract
	if cfg.Web3.ElectionsAddr != "" {
		electionsAddr = cfg.Web3.ElectionsAddr
	}

	log.Infow("using contract addresses",
		"network", cfg.Web3.Network,
		"voterRegistry", registryAddr,
		"elections", electionsAddr)

	return &web3.Addresses{
			VoterRegistry: common.HexToAddress(registryAddr),
			Elections:     common.HexToAddress(electionsAddr),
		}, &api.ContractAddresses{
			VoterRegistry: common.HexToAddress(registryAddr).Hex(),
			Elections:     common.HexToAddress(electionsAddr).Hex(),
		}
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}
	addresses, apiAddresses := getContractAddresses(cfg)
	policy := rpc.RetryPolicy{
		MaxAttempts: cfg.Retry.Attempts,
		BaseDelay:   cfg.Retry.Delay,
	}

	// wait for the first endpoint, a local chain may still be booting
	readyCtx, cancel := context.WithTimeout(ctx, rpcReadyTimeout)
	err := web3.WaitReadyRPC(readyCtx, cfg.Web3.Rpc[0])
	cancel()
	if err != nil {
		return nil, fmt.Errorf("web3 endpoint %s not ready: %w", cfg.Web3.Rpc[0], err)
	}

	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", cfg.DB.Type)
	storagedb, err := metadb.New(cfg.DB.Type, cfg.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	log.Info("initializing web3 contracts")
	services.Contracts, err = web3.New(ctx, cfg.Web3.Rpc)
	if err != nil {
		return services, fmt.Errorf("failed to initialize web3 client: %w", err)
	}
	services.Contracts.TxTimeout = cfg.Tx.Timeout
	if err := services.Contracts.LoadContracts(ctx, addresses); err != nil {
		return services, fmt.Errorf("failed to initialize contracts: %w", err)
	}
	if err := services.Contracts.SetAccountPrivateKey(cfg.Web3.PrivKey); err != nil {
		return services, fmt.Errorf("failed to set account private key: %w", err)
	}
	log.Infow("contracts initialized",
		"chainId", services.Contracts.ChainID,
		"account", services.Contracts.AccountAddress().Hex())

	// the mirror and the archive connect to independent services
	var commitments archive.Archive
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := newMirror(gctx, &cfg.Mirror)
		if err != nil {
			return err
		}
		services.Mirror = m
		return nil
	})
	g.Go(func() error {
		a, err := newArchive(gctx, &cfg.Archive)
		if err != nil {
			return err
		}
		commitments = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return services, err
	}

	resolver, err := registry.New(services.Contracts, policy, registry.DefaultCacheSize)
	if err != nil {
		return services, fmt.Errorf("failed to create registry resolver: %w", err)
	}
	provisioner, err := provision.New(provision.Config{
		Resolver:  resolver,
		Elections: services.Contracts,
		Policy:    policy,
		Mirror:    services.Mirror,
		Store:     services.Storage,
		Archive:   commitments,
	})
	if err != nil {
		return services, fmt.Errorf("failed to create provisioner: %w", err)
	}

	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(api.APIConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		Storage:     services.Storage,
		Provisioner: provisioner,
		Elections:   services.Contracts,
		Policy:      policy,
		Network:     cfg.Web3.Network,
		ChainID:     services.Contracts.ChainID,
		Contracts:   apiAddresses,
	}, false)
	if err := services.API.Start(ctx); err != nil {
		return services, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("evoting-node is running, ready to provision elections!")
	return services, nil
}

// newMirror connects the configured election mirror.
func newMirror(ctx context.Context, cfg *MirrorConfig) (mirror.Mirror, error) {
	switch cfg.Driver {
	case mirrorPostgres:
		log.Infow("connecting postgres mirror")
		m, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect postgres mirror: %w", err)
		}
		return m, nil
	case mirrorMongo:
		log.Infow("connecting mongodb mirror", "database", cfg.Database)
		m, err := mongodb.New(ctx, cfg.DSN, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongodb mirror: %w", err)
		}
		return m, nil
	default:
		return mirror.Nop{}, nil
	}
}

// newArchive creates the commitment archive, nil when disabled.
func newArchive(ctx context.Context, cfg *ArchiveConfig) (archive.Archive, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	s3cfg := archive.NewDefaultS3Config()
	s3cfg.Enabled = true
	s3cfg.Endpoint = cfg.Endpoint
	s3cfg.AccessKey = cfg.AccessKey
	s3cfg.SecretKey = cfg.SecretKey
	s3cfg.Bucket = cfg.Bucket
	s3cfg.PublicACL = cfg.Public
	if cfg.Region != "" {
		s3cfg.Region = cfg.Region
	}
	if cfg.Prefix != "" {
		s3cfg.Prefix = cfg.Prefix
	}
	a, err := archive.NewS3Archive(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create commitment archive: %w", err)
	}
	log.Infow("archiving commitments", "bucket", s3cfg.Bucket, "prefix", s3cfg.Prefix)
	return a, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	// reverse order of startup
	if services.API != nil {
		services.API.Stop()
	}
	if services.Mirror != nil {
		if err := services.Mirror.Close(); err != nil {
			log.Warnw("failed to close mirror", "error", err.Error())
		}
	}
	if services.Contracts != nil {
		services.Contracts.Close()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
