package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/dkovalev/coinfunnel/internal/logger"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultGatewayAPIURL = "https://api.yookassa.ru"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the funnel service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// Payment gateway API root and shop credentials
	GatewayAPIURL    string
	GatewayShopID    string
	GatewaySecretKey string

	// Where the gateway redirects the user after checkout
	ReturnURL string

	// Receipt requires a customer contact even when the user has none
	DefaultCustomerEmail string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		ListenAddr:    defaultListenAddr,
		Environment:   defaultEnvironment,
		GatewayAPIURL: defaultGatewayAPIURL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"PAYMENT_API_URL":        setString(&c.GatewayAPIURL),
		"PAYMENT_SHOP_ID":        setString(&c.GatewayShopID),
		"PAYMENT_SECRET_KEY":     setString(&c.GatewaySecretKey),
		"RETURN_URL":             setString(&c.ReturnURL),
		"DEFAULT_CUSTOMER_EMAIL": setString(&c.DefaultCustomerEmail),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("funnel", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.GatewayAPIURL, "gateway", c.GatewayAPIURL, "Payment gateway API url")
	fs.StringVar(&c.GatewayShopID, "shop-id", c.GatewayShopID, "Payment gateway shop id")
	fs.StringVar(&c.GatewaySecretKey, "shop-secret", c.GatewaySecretKey, "Payment gateway secret key")
	fs.StringVar(&c.ReturnURL, "return-url", c.ReturnURL, "Redirect target after checkout")

	return fs.Parse(args)
}
