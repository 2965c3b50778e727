package domain

// ChainID identifies a blockchain network by its EVM chain id.
type ChainID int64

const (
	ChainEthereum ChainID = 1
	ChainBSC      ChainID = 56
	ChainPolygon  ChainID = 137
	ChainBrainArk ChainID = 424242
)

// ChainConfig describes a network the treasury custodies funds on.
type ChainConfig struct {
	ChainID     ChainID // EVM chain id
	Name        string  // human-readable name, e.g. "Ethereum Mainnet"
	RPCEndpoint string  // JSON-RPC HTTP endpoint
	WSEndpoint  string  // JSON-RPC WebSocket endpoint (optional)
}
