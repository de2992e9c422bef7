package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/pickle-storefront/internal/domain/coupon"
	"github.com/xenking/pickle-storefront/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, YAML config files and a
// local .env file.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string `usage:"HS256 secret for bearer tokens (STORE_JWT_SECRET or JWT_SECRET)" flag:"jwt-secret"`
	CouponCodes string `usage:"Comma separated CODE:PERCENT list; built-in coupons when empty" flag:"coupon-codes"`
	BodyLimit   string `default:"1M" usage:"Maximum request body size" flag:"body-limit"`
	Pricing     PricingConfig
	Orders      OrdersConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig

	coupons []coupon.Rule
	pricing pricing.Config
}

// PricingConfig sets shipping and tax. TaxRate is a decimal fraction.
type PricingConfig struct {
	FreeShippingAbove int64  `default:"999" usage:"Items price above which shipping is free"`
	ShippingFee       int64  `default:"60" usage:"Flat shipping fee"`
	TaxRate           string `default:"0.05" usage:"Tax rate applied to the items price"`
}

// OrdersConfig controls the order lifecycle.
type OrdersConfig struct {
	StrictTransitions bool `default:"false" usage:"Reject status changes outside pending→shipped→delivered" flag:"strict-transitions"`
}

// RateLimitConfig controls the per-client API rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads .env when present, then flags, environment and YAML
// files. The coupon table and pricing parameters are validated here so a
// bad deployment fails at startup.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/store/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set STORE_JWT_SECRET or JWT_SECRET")
	}

	rules, err := coupon.ParseCodes(cfg.CouponCodes)
	if err != nil {
		return nil, errors.Wrap(err, "coupon codes")
	}
	if _, err := coupon.NewTable(rules...); err != nil {
		return nil, errors.Wrap(err, "coupon codes")
	}
	cfg.coupons = rules

	if cfg.pricing, err = cfg.Pricing.parse(); err != nil {
		return nil, errors.Wrap(err, "pricing")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables set by hosting
// platforms and the storefront's older deployments.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.JWTSecret, "JWT_SECRET")
	fallback(&c.CouponCodes, "COUPON_CODES")

	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (p PricingConfig) parse() (pricing.Config, error) {
	rate, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return pricing.Config{}, errors.Wrapf(err, "tax rate %q", p.TaxRate)
	}
	switch {
	case rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return pricing.Config{}, errors.Errorf("tax rate %s must be within [0, 1)", rate)
	case p.ShippingFee < 0 || p.FreeShippingAbove < 0:
		return pricing.Config{}, errors.New("shipping amounts must not be negative")
	}
	return pricing.Config{
		FreeShippingAbove: p.FreeShippingAbove,
		ShippingFee:       p.ShippingFee,
		TaxRate:           rate,
	}, nil
}

// CouponRules returns the configured coupons. Empty means the built-in set.
func (c *Config) CouponRules() []coupon.Rule { return c.coupons }

// PricingParams returns the validated pricing parameters.
func (c *Config) PricingParams() pricing.Config { return c.pricing }
