package api

import (
	"net/http"

	"github.com/Rdilshan/e-voting-web-sub000/config"
)

// info returns the network and the contracts used by the node. Explicitly
// configured addresses take precedence over the network defaults.
// GET /info
func (a *API) info(w http.ResponseWriter, r *http.Request) {
	response := &NodeInfo{
		Network: a.network,
		ChainID: a.chainID,
	}
	if a.contracts != nil {
		response.Contracts = *a.contracts
	} else {
		defaults, ok := config.DefaultConfig[a.network]
		if !ok {
			ErrGenericInternalServerError.Withf("invalid network configuration for %s", a.network).Write(w)
			return
		}
		response.Contracts = ContractAddresses{
			VoterRegistry: defaults.VoterRegistrySmartContract,
			Elections:     defaults.ElectionsSmartContract,
		}
		if response.ChainID == 0 {
			response.ChainID = defaults.ChainID
		}
	}
	httpWriteJSON(w, response)
}
