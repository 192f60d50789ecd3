package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Info endpoint
	InfoEndpoint = "/info" // GET: network and contract addresses

	// Election endpoints
	ElectionURLParam        = "electionId"                                          // URL parameter for election ID
	AddressURLParam         = "address"                                             // URL parameter for a voter wallet
	ElectionsEndpoint       = "/elections"                                          // GET: List elections, POST: Provision an election
	ElectionEndpoint        = "/elections/{" + ElectionURLParam + "}"               // GET: Local election record
	ElectionOnchainEndpoint = ElectionEndpoint + "/onchain"                         // GET: Election as stored on-chain
	ElectionProofEndpoint   = ElectionEndpoint + "/proof/{" + AddressURLParam + "}" // GET: Eligibility proof of a wallet

	// Provisioning run endpoints
	RunURLParam          = "runId"                               // URL parameter for provisioning run ID
	ProvisioningEndpoint = "/provisioning/{" + RunURLParam + "}" // GET: Outcome of a provisioning run
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. If the placeholder is missing the
// value is added as a query parameter.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, url.QueryEscape(key), url.QueryEscape(param))
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
	InfoEndpoint,
}
