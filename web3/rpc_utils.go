package web3

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Rdilshan/e-voting-web-sub000/log"
)

// readyPollInterval is the pause between readiness probes.
const readyPollInterval = 500 * time.Millisecond

// WaitReadyRPC blocks until the endpoint answers with a non-zero block
// number or ctx is done. Used at startup, when the node may be launched
// alongside a local chain that is still booting.
func WaitReadyRPC(ctx context.Context, rpcURL string) error {
	log.Debugw("waiting for RPC to be ready", "url", rpcURL)
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	defer client.Close()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		blockNumber, err := client.BlockNumber(ctx)
		if err == nil && blockNumber > 0 {
			log.Infow("RPC is ready", "url", rpcURL, "blockNumber", blockNumber)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("RPC %s not ready: %w", rpcURL, ctx.Err())
		case <-ticker.C:
		}
	}
}
