// Package normalizer reconciles the domestic wholesale and international B2B
// upstream item shapes into the canonical marketplace.Product. All functions
// are pure.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// ErrInvalidItem is returned for raw items that cannot be mapped
var ErrInvalidItem = errors.New("normalizer: invalid item")

// ProviderKey is the tag carried by already-normalized items
const ProviderKey = "provider"

// internationalMarkers are fields only the international B2B API emits
var internationalMarkers = []string{"Id", "QuantityRanges", "VendorId"}

// Classify guesses which upstream shape an untagged raw item has.
// This heuristic belongs at the ingestion edge only; downstream code reads Product.Provider.
func Classify(raw marketplace.RawItem) marketplace.Provider {
	if has(raw, internationalMarkers...) {
		return marketplace.ProviderInternational
	}
	return marketplace.ProviderDomestic
}

// Normalize maps any raw item to the canonical product. Items that already
// carry a provider tag are decoded as-is instead of being re-normalized.
func Normalize(raw marketplace.RawItem) (marketplace.Product, error) {
	if raw == nil {
		return marketplace.Product{}, fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	if tag, ok := raw[ProviderKey]; ok {
		return passThrough(raw, tag)
	}
	return NormalizeAs(Classify(raw), raw)
}

// NormalizeAs maps a raw item whose provider is already known
func NormalizeAs(provider marketplace.Provider, raw marketplace.RawItem) (marketplace.Product, error) {
	switch provider {
	case marketplace.ProviderDomestic:
		return NormalizeDomestic(raw)
	case marketplace.ProviderInternational:
		return NormalizeInternational(raw)
	default:
		return marketplace.Product{}, fmt.Errorf("%w: %q", marketplace.ErrUnknownProvider, provider)
	}
}

func passThrough(raw marketplace.RawItem, tag any) (marketplace.Product, error) {
	s, ok := tag.(string)
	if !ok || !marketplace.Provider(s).IsValid() {
		return marketplace.Product{}, fmt.Errorf("%w: provider tag %v (%s)", ErrInvalidItem, tag, describe(tag))
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return marketplace.Product{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	var product marketplace.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return marketplace.Product{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if product.ID == "" {
		return marketplace.Product{}, fmt.Errorf("%w: tagged item has no id", ErrInvalidItem)
	}
	return product, nil
}

// ItemError describes one item dropped from a batch
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// NormalizeBatch normalizes every item, collecting failures instead of aborting
func NormalizeBatch(items []marketplace.RawItem) ([]marketplace.Product, []ItemError) {
	products := make([]marketplace.Product, 0, len(items))
	var failures []ItemError
	for i, item := range items {
		p, err := Normalize(item)
		if err != nil {
			failures = append(failures, ItemError{Index: i, Err: err})
			continue
		}
		products = append(products, p)
	}
	return products, failures
}

// NormalizeBatchAs normalizes items from a client whose provider is known
func NormalizeBatchAs(provider marketplace.Provider, items []marketplace.RawItem) ([]marketplace.Product, []ItemError) {
	products := make([]marketplace.Product, 0, len(items))
	var failures []ItemError
	for i, item := range items {
		var (
			p   marketplace.Product
			err error
		)
		if _, tagged := item[ProviderKey]; tagged {
			p, err = Normalize(item)
		} else {
			p, err = NormalizeAs(provider, item)
		}
		if err != nil {
			failures = append(failures, ItemError{Index: i, Err: err})
			continue
		}
		products = append(products, p)
	}
	return products, failures
}
