// Package marketplace contains the Marketplace bounded context.
// It defines the canonical product shape shared by search, favorites and the
// popular-products catalog, and the port through which upstream marketplaces
// are reached.
//
// Key concepts:
//   - Product: provider-tagged canonical product, produced only by a normalizer
//   - RawItem: loosely typed upstream payload as it enters the system
//   - Client: port interface implemented by the domestic and international adapters
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in internal/infrastructure/marketplace
package marketplace
