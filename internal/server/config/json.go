package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophtoken/internal/flagx"
	"github.com/dmitrijs2005/gophtoken/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so that "30s" and "720h" are accepted. Pointer fields
// distinguish "absent" from "false"/"0".
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	TokenStore                   string          `json:"token_store"`
	RedisAddr                    string          `json:"redis_addr"`
	RedisPassword                string          `json:"redis_password"`
	RedisDB                      *int            `json:"redis_db"`
	JWTIssuer                    string          `json:"jwt_issuer"`
	JWTAudience                  string          `json:"jwt_audience"`
	JWTKeyID                     string          `json:"jwt_key_id"`
	PrivateKeyLocation           string          `json:"private_key"`
	AccessTokenValidityDuration  timex.Duration  `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration  `json:"refresh_token_validity_duration"`
	ReuseGracePeriod             *timex.Duration `json:"reuse_grace_period"`
	S3RootUser                   string          `json:"s3_root_user"`
	S3RootPassword               string          `json:"s3_root_password"`
	S3Region                     string          `json:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint"`
	LogBackend                   string          `json:"log_backend"`
	LogLevel                     string          `json:"log_level"`
	SentryDSN                    string          `json:"sentry_dsn"`
	Environment                  string          `json:"environment"`
	DevIdentityHeader            *bool           `json:"dev_identity_header"`
	TrustedIdentityHeader        string          `json:"trusted_identity_header"`
	CORSAllowedOrigins           []string        `json:"cors_allowed_origins"`
	SeedDemoUsers                *bool           `json:"seed_demo_users"`
	PurgeInterval                *timex.Duration `json:"purge_interval"`
	PurgeRetention               *timex.Duration `json:"purge_retention"`
}

// parseJson overlays the file named by -c/-config (or $GOPHTOKEN_CONFIG) onto
// config. Keys missing from the file keep their current values. An unreadable
// or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TokenStore, c.TokenStore)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.JWTIssuer, c.JWTIssuer)
	setString(&config.JWTAudience, c.JWTAudience)
	setString(&config.JWTKeyID, c.JWTKeyID)
	setString(&config.PrivateKeyLocation, c.PrivateKeyLocation)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.ReuseGracePeriod != nil {
		config.ReuseGracePeriod = c.ReuseGracePeriod.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SentryDSN, c.SentryDSN)
	setString(&config.Environment, c.Environment)
	if c.DevIdentityHeader != nil {
		config.DevIdentityHeader = *c.DevIdentityHeader
	}
	setString(&config.TrustedIdentityHeader, c.TrustedIdentityHeader)
	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.SeedDemoUsers != nil {
		config.SeedDemoUsers = *c.SeedDemoUsers
	}
	if c.PurgeInterval != nil {
		config.PurgeInterval = c.PurgeInterval.Duration
	}
	if c.PurgeRetention != nil {
		config.PurgeRetention = c.PurgeRetention.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
