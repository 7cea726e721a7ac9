package ledger

// Config holds configuration for the ledger gateway client.
type Config struct {
	// Endpoint is the base URL of the ledger gateway.
	Endpoint string `mapstructure:"endpoint" default:"http://localhost:9100"`
	// ApiKey is the bearer token used to authenticate with the gateway.
	ApiKey string `mapstructure:"api_key" default:""`
	// Asset is the token code of the reward asset.
	Asset string `mapstructure:"asset" default:"READ"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"15"`
}
