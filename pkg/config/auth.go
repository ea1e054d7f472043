package config

// AuthConfig holds the registry's own token-validation configuration.
// Two models are supported per the registry's legacy/modern distinction:
// legacy targets authenticate with a static per-target token (x-api-token),
// modern targets authenticate with a Bearer JWT carrying scope claims.
type AuthConfig struct {
	JWTSecret       string `json:"jwt_secret"`
	JWTIssuer       string `json:"jwt_issuer"`
	LegacyTokenSalt string `json:"legacy_token_salt"`
}

// LoadAuthConfig loads authentication configuration from environment variables.
func LoadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		JWTIssuer:       getEnv("JWT_ISSUER", "schema-registry"),
		LegacyTokenSalt: getEnv("LEGACY_TOKEN_SALT", "legacy-registry-salt"),
	}
}
