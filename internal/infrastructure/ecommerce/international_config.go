package ecommerce

import "errors"

// InternationalProductionAPIURL is the production endpoint
const InternationalProductionAPIURL = "https://otapi.net/service-json/"

const defaultLanguage = "en"

var ErrInternationalConfigMissingInstanceKey = errors.New("international: instance key is required")

// InternationalConfig configures the international B2B API
type InternationalConfig struct {
	Endpoint
	InstanceKey string
	Language    string // content language of titles and descriptions
}

func NewInternationalConfig(instanceKey string) *InternationalConfig {
	return &InternationalConfig{
		Endpoint:    productionEndpoint(InternationalProductionAPIURL),
		InstanceKey: instanceKey,
		Language:    defaultLanguage,
	}
}

// Validate requires an instance key and fills the rest
func (c *InternationalConfig) Validate() error {
	if c.InstanceKey == "" {
		return ErrInternationalConfigMissingInstanceKey
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	c.fill(InternationalProductionAPIURL)
	return nil
}
