package clientip

import "net/http"

// Middleware stores the resolved client address in the request context.
// A nil resolver uses DefaultHeaders.
func Middleware(res *Resolver) func(http.Handler) http.Handler {
	if res == nil {
		res = NewResolver()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := res.Resolve(r); ip != "" {
				r = r.WithContext(WithContext(r.Context(), ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}
