// Package service wraps the long running parts of the node with a
// Start/Stop lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rdilshan/e-voting-web-sub000/api"
	"github.com/Rdilshan/e-voting-web-sub000/log"
)

// shutdownTimeout bounds the wait for in-flight requests on Stop.
const shutdownTimeout = 30 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	conf api.APIConfig
	API  *api.API
	mu   sync.Mutex
}

// NewAPI creates a new APIService instance.
func NewAPI(conf api.APIConfig, disableLogging bool) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{conf: conf}
}

// Start begins the API server. It returns an error if the service is
// already running or if it fails to start. The server is stopped when ctx
// is done.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.API != nil {
		return fmt.Errorf("service already running")
	}
	conf := as.conf
	server, err := api.New(&conf)
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.API = server
	go func() {
		<-ctx.Done()
		as.Stop()
	}()
	return nil
}

// Stop halts the API server, waiting for in-flight requests.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.API == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := as.API.Close(ctx); err != nil {
		log.Warnw("API server did not stop cleanly", "error", err.Error())
	}
	as.API = nil
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.conf.Host, as.conf.Port
}
