package web3

// VoterRegistryABI is the ABI of the contract binding voter identifiers to
// wallets.
const VoterRegistryABI = `[
  {
    "type": "function",
    "name": "getWalletByNIC",
    "stateMutability": "view",
    "inputs": [{"name": "nic", "type": "string"}],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "function",
    "name": "registerWallet",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "nic", "type": "string"},
      {"name": "wallet", "type": "address"}
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "WalletRegistered",
    "anonymous": false,
    "inputs": [
      {"name": "nic", "type": "string", "indexed": false},
      {"name": "wallet", "type": "address", "indexed": true}
    ]
  }
]`

// ElectionsABI is the ABI of the contract holding elections and their
// eligibility roots.
const ElectionsABI = `[
  {
    "type": "function",
    "name": "electionCount",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "createElection",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "title", "type": "string"},
      {"name": "description", "type": "string"},
      {"name": "startTime", "type": "uint256"},
      {"name": "endTime", "type": "uint256"},
      {"name": "candidates", "type": "tuple[]", "components": [
        {"name": "name", "type": "string"},
        {"name": "party", "type": "string"},
        {"name": "wallet", "type": "address"}
      ]},
      {"name": "merkleRoot", "type": "bytes32"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "elections",
    "stateMutability": "view",
    "inputs": [{"name": "", "type": "uint256"}],
    "outputs": [
      {"name": "id", "type": "uint256"},
      {"name": "title", "type": "string"},
      {"name": "description", "type": "string"},
      {"name": "startTime", "type": "uint256"},
      {"name": "endTime", "type": "uint256"},
      {"name": "merkleRoot", "type": "bytes32"},
      {"name": "exists", "type": "bool"}
    ]
  },
  {
    "type": "function",
    "name": "getElectionData",
    "stateMutability": "view",
    "inputs": [{"name": "electionId", "type": "uint256"}],
    "outputs": [
      {"name": "election", "type": "tuple", "components": [
        {"name": "id", "type": "uint256"},
        {"name": "title", "type": "string"},
        {"name": "description", "type": "string"},
        {"name": "startTime", "type": "uint256"},
        {"name": "endTime", "type": "uint256"},
        {"name": "merkleRoot", "type": "bytes32"},
        {"name": "exists", "type": "bool"}
      ]},
      {"name": "candidates", "type": "tuple[]", "components": [
        {"name": "name", "type": "string"},
        {"name": "party", "type": "string"},
        {"name": "wallet", "type": "address"}
      ]}
    ]
  },
  {
    "type": "event",
    "name": "ElectionCreated",
    "anonymous": false,
    "inputs": [
      {"name": "electionId", "type": "uint256", "indexed": true},
      {"name": "title", "type": "string", "indexed": false},
      {"name": "merkleRoot", "type": "bytes32", "indexed": false}
    ]
  }
]`
