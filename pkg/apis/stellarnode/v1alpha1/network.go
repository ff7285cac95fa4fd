// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

// Network identifies the Stellar network a node joins.
type Network string

const (
	NetworkMainnet   Network = "Mainnet"
	NetworkTestnet   Network = "Testnet"
	NetworkFuturenet Network = "Futurenet"
)

// AllNetworks lists the supported networks for validation messages.
var AllNetworks = []Network{NetworkMainnet, NetworkTestnet, NetworkFuturenet}

// Well-known network passphrases. The passphrase uniquely identifies the ledger
// history a node validates against and is baked into its configuration.
const (
	MainnetPassphrase   = "Public Global Stellar Network ; September 2015"
	TestnetPassphrase   = "Test SDF Network ; September 2015"
	FuturenetPassphrase = "Test SDF Future Network ; October 2022"
)

// Passphrase returns the well-known passphrase of the network, or an empty string
// for an unknown network value.
func (n Network) Passphrase() string {
	switch n {
	case NetworkMainnet:
		return MainnetPassphrase
	case NetworkTestnet:
		return TestnetPassphrase
	case NetworkFuturenet:
		return FuturenetPassphrase
	default:
		return ""
	}
}

// HistoryArchiveURLs returns the default public history archives used to catch up
// nodes on the given network.
func (n Network) HistoryArchiveURLs() []string {
	switch n {
	case NetworkMainnet:
		return []string{
			"https://history.stellar.org/prd/core-live/core_live_001",
			"https://history.stellar.org/prd/core-live/core_live_002",
			"https://history.stellar.org/prd/core-live/core_live_003",
		}
	case NetworkTestnet:
		return []string{
			"https://history.stellar.org/prd/core-testnet/core_testnet_001",
			"https://history.stellar.org/prd/core-testnet/core_testnet_002",
		}
	case NetworkFuturenet:
		return []string{"https://history-futurenet.stellar.org"}
	default:
		return nil
	}
}
