package security

import (
	"net/http"
	"strconv"
	"strings"
)

// CORS allows credentialed requests from a fixed set of origins.
type CORS struct {
	origins map[string]struct{}
	methods string
	headers string
	maxAge  int
}

// NewCORS accepts a comma separated origin list.
func NewCORS(origins string) *CORS {
	c := &CORS{
		origins: make(map[string]struct{}),
		methods: "GET, POST, PUT, DELETE, OPTIONS",
		headers: "Content-Type, Authorization",
		maxAge:  600,
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			c.origins[o] = struct{}{}
		}
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	_, ok := c.origins[origin]
	return ok
}

func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")

		if origin != "" && c.allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !c.allowed(origin) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", c.methods)
			h.Set("Access-Control-Allow-Headers", c.headers)
			h.Set("Access-Control-Max-Age", strconv.Itoa(c.maxAge))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
