package ecommerce

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"maps"
	"slices"
	"strings"
)

// DomesticProductionAPIURL is the production gateway endpoint
const DomesticProductionAPIURL = "https://api-gw.onebound.cn/1688/"

var (
	ErrDomesticConfigMissingAppKey    = errors.New("domestic: app key is required")
	ErrDomesticConfigMissingAppSecret = errors.New("domestic: app secret is required")
)

// DomesticConfig configures the domestic wholesale gateway. Requests are
// authenticated with AppKey and signed with AppSecret.
type DomesticConfig struct {
	Endpoint
	AppKey    string
	AppSecret string
}

func NewDomesticConfig(appKey, appSecret string) *DomesticConfig {
	return &DomesticConfig{
		Endpoint:  productionEndpoint(DomesticProductionAPIURL),
		AppKey:    appKey,
		AppSecret: appSecret,
	}
}

// Validate checks credentials and fills endpoint defaults
func (c *DomesticConfig) Validate() error {
	switch {
	case c.AppKey == "":
		return ErrDomesticConfigMissingAppKey
	case c.AppSecret == "":
		return ErrDomesticConfigMissingAppSecret
	}
	c.fill(DomesticProductionAPIURL)
	return nil
}

// Sign computes upper-case hex MD5 over the secret, the parameters sorted by
// key with "sign" excluded, and the secret again.
func (c *DomesticConfig) Sign(params map[string]string) string {
	var b strings.Builder
	b.WriteString(c.AppSecret)
	for _, k := range slices.Sorted(maps.Keys(params)) {
		if k != "sign" {
			b.WriteString(k + params[k])
		}
	}
	b.WriteString(c.AppSecret)

	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
