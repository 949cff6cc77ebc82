package engine

import "fmt"

// Registry is the static whitelist of pricing assets for one network.
// Pricing assets are the only valid counter-assets for establishing USD
// value; the USD-stable subset is valued 1:1 and its first member is the
// anchor every other asset is priced against.
type Registry struct {
	pricing map[string]struct{}
	stable  map[string]struct{}
	anchor  string
}

// Addresses are lowercase hex.
var (
	bscPricingAssets = []string{
		"0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", // WBNB
		"0x55d398326f99059ff775485246999027b3197955", // USDT
		"0xb365ab13bc6bd2826a0217a5d3c26c4da9c739ca", // vUSD
		"0xce610182e55b8fabbfbe990811fc546ffb26b5c9", // vEUR
		"0x0586a2240013daaa41ec91c4447a0e9e30c4becc", // vTHB
		"0x4bfde56e7eb7ed22cd5fb7c7595d1d11b1414581", // vSGD
		"0x805a6d33250c9129b17245b39f4aa9bdac3231c9", // vCHF
	}
	bscUSDStable = []string{
		"0xb365ab13bc6bd2826a0217a5d3c26c4da9c739ca", // vUSD
	}

	chapelPricingAssets = []string{
		"0x4fac0386c4045b52756b206db3148201e42b3f62", // WBNB
		"0xe2d4098010f4fcd04c11c70d8b322b711ffbdcca", // USDT
		"0x5108c124a162221a11181d82889cb4b85251b99e", // vUSD
		"0x927098c1f03f4f624c2b30f5cc956f0edc175e61", // vEUR
		"0x7950d937be6ad204d73345609a3c91259236b139", // vTHB
		"0x4149c3b3807cdc4cb2249f9c4579391a77a93043", // vSGD
		"0xf313ca0e69ebd1c5230bf939c46b0e097463fe49", // vCHF
	}
	chapelUSDStable = []string{
		"0x5108c124a162221a11181d82889cb4b85251b99e", // vUSD
	}
)

// NewRegistry builds a registry from explicit asset lists. The anchor is the
// first USD-stable asset.
func NewRegistry(pricingAssets, usdStable []string) (*Registry, error) {
	if len(usdStable) == 0 {
		return nil, fmt.Errorf("at least one usd-stable asset is required")
	}
	r := &Registry{
		pricing: make(map[string]struct{}, len(pricingAssets)),
		stable:  make(map[string]struct{}, len(usdStable)),
		anchor:  usdStable[0],
	}
	for _, asset := range pricingAssets {
		r.pricing[asset] = struct{}{}
	}
	for _, asset := range usdStable {
		r.pricing[asset] = struct{}{}
		r.stable[asset] = struct{}{}
	}
	return r, nil
}

// ForNetwork returns the registry for a named network.
func ForNetwork(network string) (*Registry, error) {
	switch network {
	case "bsc":
		return NewRegistry(bscPricingAssets, bscUSDStable)
	case "chapel":
		return NewRegistry(chapelPricingAssets, chapelUSDStable)
	default:
		return nil, fmt.Errorf("unknown network: %s", network)
	}
}

// IsPricingAsset reports whether asset is in the whitelist.
func (r *Registry) IsPricingAsset(asset string) bool {
	_, ok := r.pricing[asset]
	return ok
}

// IsUSDStable reports whether asset is a 1:1 USD proxy.
func (r *Registry) IsUSDStable(asset string) bool {
	_, ok := r.stable[asset]
	return ok
}

// USDAnchor returns the asset every non-stable price is quoted against.
func (r *Registry) USDAnchor() string {
	return r.anchor
}
