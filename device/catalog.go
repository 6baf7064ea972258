package device

import "github.com/x402labs/devicegate/types"

// Device describes one entry of the static device catalog: identity,
// capabilities, the payment method variant it accepts, and a pricing
// table mapping each action to a human-readable amount. Plain data;
// pricing is a table lookup, nothing more.
type Device struct {
	ID           string               `json:"deviceId"`
	Name         string               `json:"name"`
	Model        string               `json:"model"`
	Capabilities []string             `json:"capabilities"`
	Method       types.PaymentMethod  `json:"paymentMethod"`
	Pricing      map[string]string    `json:"pricing"`
}

// Supports reports whether the device can execute the action.
func (d Device) Supports(action string) bool {
	for _, c := range d.Capabilities {
		if c == action {
			return true
		}
	}
	return false
}

// PriceFor looks up the human-readable price of an action.
func (d Device) PriceFor(action string) (string, bool) {
	price, ok := d.Pricing[action]
	return price, ok
}

// Catalog is the immutable device directory.
type Catalog struct {
	devices map[string]Device
}

// NewCatalog builds a directory from the given devices.
func NewCatalog(devices ...Device) *Catalog {
	m := make(map[string]Device, len(devices))
	for _, d := range devices {
		m[d.ID] = d
	}
	return &Catalog{devices: m}
}

// Get looks up a device by id.
func (c *Catalog) Get(id string) (Device, bool) {
	d, ok := c.devices[id]
	return d, ok
}

// All returns every catalog entry.
func (c *Catalog) All() []Device {
	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	return out
}

// DefaultCatalog returns the built-in demo fleet: a smart lock paid in
// USDC on an EVM chain and a coffee brewer paid in TSE on Solana.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Device{
			ID:           "X402-LOCK-001",
			Name:         "Front Door Lock",
			Model:        "SL-200",
			Capabilities: []string{"lock", "unlock"},
			Method:       types.MethodUSDCEVM,
			Pricing: map[string]string{
				"unlock": "0.10",
				"lock":   "0",
			},
		},
		Device{
			ID:           "X402-COFFEE-001",
			Name:         "Office Brewer",
			Model:        "BRW-9",
			Capabilities: []string{"brew"},
			Method:       types.MethodTSESolana,
			Pricing: map[string]string{
				"brew": "1.5",
			},
		},
	)
}
