package domain

// PriceRecord is the persisted last-known USD price for one asset.
// One row per mint; acts as the fallback layer under the process-local
// price cache so a cold restart does not produce a price spike.
type PriceRecord struct {
	Mint       string
	PriceUSD   float64
	ObservedAt int64 // Unix timestamp in milliseconds
}
