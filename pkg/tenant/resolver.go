package tenant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Resolver extracts a tenant identifier from HTTP requests.
type Resolver interface {
	// Resolve returns an empty string if the request carries no identifier.
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// HeaderResolver reads the tenant identifier from a request header.
type HeaderResolver struct {
	HeaderName string
}

// NewHeaderResolver creates a header resolver. An empty name defaults to X-Tenant-ID.
func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &HeaderResolver{HeaderName: headerName}
}

// Resolve returns the trimmed header value.
func (r *HeaderResolver) Resolve(req *http.Request) (string, error) {
	return strings.TrimSpace(req.Header.Get(r.HeaderName)), nil
}

// PathResolver reads the tenant identifier from a URL path segment.
type PathResolver struct {
	// Position is 1-based, e.g. 2 for /tenants/{id}/features.
	Position int
}

// NewPathResolver creates a path resolver.
func NewPathResolver(position int) *PathResolver {
	return &PathResolver{Position: position}
}

// Resolve returns the path segment at the configured position.
func (r *PathResolver) Resolve(req *http.Request) (string, error) {
	if r.Position < 1 {
		return "", errors.New("invalid path position")
	}

	path := strings.Trim(req.URL.Path, "/")
	if path == "" {
		return "", nil
	}

	parts := strings.Split(path, "/")
	if r.Position > len(parts) {
		return "", nil
	}
	return parts[r.Position-1], nil
}

// CompositeResolver tries resolvers in order and returns the first non-empty result.
type CompositeResolver struct {
	Resolvers []Resolver
}

// NewCompositeResolver creates a composite resolver.
func NewCompositeResolver(resolvers ...Resolver) *CompositeResolver {
	return &CompositeResolver{Resolvers: resolvers}
}

// Resolve implements Resolver.
func (c *CompositeResolver) Resolve(r *http.Request) (string, error) {
	var errs []error
	for _, resolver := range c.Resolvers {
		id, err := resolver.Resolve(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != "" {
			return id, nil
		}
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("composite resolver errors: %w", errors.Join(errs...))
	}
	return "", nil
}

// ParseID parses a tenant identifier into a UUID.
func ParseID(identifier string) (uuid.UUID, error) {
	id, err := uuid.Parse(identifier)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.Join(ErrInvalidIdentifier, err)
	}
	return id, nil
}
