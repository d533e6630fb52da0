package config

// SSOConfig contains the OAuth/SSO provider configuration.
type SSOConfig struct {
	ClientID     string `env:"CLIENT_ID,required"`
	ClientSecret string `env:"CLIENT_SECRET,required"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scopes       string `env:"SCOPES"        envDefault:"publicData esi-killmails.read_killmails.v1 esi-killmails.read_corporation_killmails.v1"`

	AuthorizeURL string `env:"AUTHORIZE_URL" envDefault:"https://login.eveonline.com/v2/oauth/authorize"`
	TokenURL     string `env:"TOKEN_URL"     envDefault:"https://login.eveonline.com/v2/oauth/token"`
	JWKSURL      string `env:"JWKS_URL"      envDefault:"https://login.eveonline.com/oauth/jwks"`

	// Audience is the non-client-id audience the provider stamps on tokens.
	Audience string `env:"AUDIENCE" envDefault:"EVE Online"`

	// Issuers is the issuer allow-list. The provider is inconsistent about
	// including the scheme, so both spellings are accepted by default.
	Issuers []string `env:"ISSUERS" envDefault:"login.eveonline.com,https://login.eveonline.com"`
}

// ESIConfig contains the game-data API configuration.
type ESIConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://esi.evetech.net"`
}
