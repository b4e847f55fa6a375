package module

import (
	"time"

	"ordercast/internal/platform/config"
)

// Options holds configuration settings for the sync module
type Options struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	BaseURL     string

	PageSize       int
	FanoutMax      int
	RequestTimeout time.Duration
	MaxRetries     int
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	sf := cfg.Prefix("SYNC_SHOPIFY_")
	return Options{
		ShopDomain:     sf.MayString("SHOP_DOMAIN", ""),
		AccessToken:    sf.MayString("ACCESS_TOKEN", ""),
		APIVersion:     sf.MayString("API_VERSION", ""),
		BaseURL:        sf.MayString("BASE_URL", ""),
		PageSize:       sf.MayInt("PAGE_SIZE", 250),
		FanoutMax:      sf.MayInt("FANOUT_MAX", 0),
		RequestTimeout: sf.MayDuration("TIMEOUT", 10*time.Second),
		MaxRetries:     sf.MayInt("MAX_RETRIES", 0),
	}
}
