package ecommerce

import (
	"strings"
	"time"

	"github.com/erp/shopsync/internal/domain/integration"
)

const (
	// DefaultTimeout bounds one HTTP round trip
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is how often a 429 is retried before it is returned
	DefaultMaxRetries = 3
	// DefaultMaxBackoff caps the wait between retries
	DefaultMaxBackoff = 30 * time.Second
	// DefaultPageSize is the largest page the list endpoints accept
	DefaultPageSize = 250

	// maxResponseSize is the largest response body read (10MB)
	maxResponseSize = 10 * 1024 * 1024

	headerAccessToken = "X-Shopify-Access-Token"
)

// ClientConfig holds transport settings shared by every gateway the factory builds.
// Credentials are not part of it; they come from the integration settings.
type ClientConfig struct {
	Timeout    time.Duration
	APIVersion string // e.g. "2024-01"; empty uses the unversioned /admin paths
	MaxRetries int
	MaxBackoff time.Duration
	PageSize   int
}

// DefaultClientConfig returns the production defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		MaxBackoff: DefaultMaxBackoff,
		PageSize:   DefaultPageSize,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.PageSize <= 0 || c.PageSize > DefaultPageSize {
		c.PageSize = DefaultPageSize
	}
	return c
}

// adminPath prefixes resource with /admin or /admin/api/<version>.
func (c ClientConfig) adminPath(resource string) string {
	resource = strings.TrimPrefix(resource, "/")
	if c.APIVersion == "" {
		return "/admin/" + resource
	}
	return "/admin/api/" + c.APIVersion + "/" + resource
}

// baseURL turns the configured shop address into an origin. A bare host gets https.
func baseURL(shopURL string) (string, error) {
	shopURL = strings.TrimRight(strings.TrimSpace(shopURL), "/")
	if shopURL == "" {
		return "", integration.NewConfigurationError("shop_url", "is required")
	}
	if !strings.HasPrefix(shopURL, "http://") && !strings.HasPrefix(shopURL, "https://") {
		shopURL = "https://" + shopURL
	}
	return shopURL, nil
}

// credentials selects the auth scheme for the app type.
type credentials struct {
	basicUser     string
	basicPassword string
	accessToken   string
}

func credentialsFor(settings *integration.Settings) (credentials, error) {
	switch settings.AppType {
	case integration.AppTypePrivate:
		if settings.APIKey == "" || settings.Password == "" {
			return credentials{}, integration.NewConfigurationError("api_key", "api key and password are required for Private apps")
		}
		return credentials{basicUser: settings.APIKey, basicPassword: settings.Password}, nil
	case integration.AppTypePublic:
		if settings.AccessToken == "" {
			return credentials{}, integration.NewConfigurationError("access_token", "is required for Public apps")
		}
		return credentials{accessToken: settings.AccessToken}, nil
	default:
		return credentials{}, integration.NewConfigurationError("app_type", "must be Private or Public")
	}
}
