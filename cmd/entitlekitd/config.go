package main

import (
	"fmt"

	"github.com/dmitrymomot/entitlekit/pkg/clientip"
	"github.com/dmitrymomot/entitlekit/pkg/environment"
)

// Store and audit backends.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverMongo    = "mongo"
)

// appConfig selects the backends. Backend-specific settings are loaded
// separately so that an unused backend's required variables stay optional.
type appConfig struct {
	Env         environment.Environment `env:"APP_ENV" envDefault:"development"`
	ServiceName string                  `env:"SERVICE_NAME" envDefault:"entitlekitd"`
	CatalogPath string                  `env:"FEATURE_CATALOG_PATH"`
	StoreDriver string                  `env:"STORE_DRIVER" envDefault:"memory"`
	AuditDriver string                  `env:"AUDIT_DRIVER"`
	EventBuffer int                     `env:"EVENT_BUFFER_SIZE" envDefault:"256"`

	// ProxyHeaders lists the forwarding headers trusted for the client
	// address. "none" trusts the socket address only.
	ProxyHeaders []string `env:"TRUSTED_PROXY_HEADERS" envDefault:"X-Forwarded-For,X-Real-IP" envSeparator:","`
}

func (c appConfig) clientIPResolver() *clientip.Resolver {
	if len(c.ProxyHeaders) == 1 && c.ProxyHeaders[0] == "none" {
		return clientip.RemoteAddrOnly()
	}
	return clientip.NewResolver(c.ProxyHeaders...)
}

// auditDriver defaults to the store backend.
func (c appConfig) auditDriver() string {
	if c.AuditDriver != "" {
		return c.AuditDriver
	}
	return c.StoreDriver
}

func (c appConfig) validate() error {
	switch c.StoreDriver {
	case driverMemory, driverPostgres:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.auditDriver() {
	case driverMemory, driverPostgres, driverMongo:
	default:
		return fmt.Errorf("unsupported AUDIT_DRIVER %q", c.AuditDriver)
	}
	if c.auditDriver() == driverPostgres && c.StoreDriver != driverPostgres {
		return fmt.Errorf("AUDIT_DRIVER=postgres requires STORE_DRIVER=postgres")
	}
	return nil
}
