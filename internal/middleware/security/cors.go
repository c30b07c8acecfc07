package security

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORS answers preflight requests and tags responses for the configured
// origins. An empty list disables cross-origin access; "*" allows any
// origin without credentials.
type CORS struct {
	origins []string
	any     bool
	methods string
	headers string
	maxAge  string
}

func NewCORS(origins []string) *CORS {
	return &CORS{
		origins: origins,
		any:     slices.Contains(origins, "*"),
		methods: strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}, ", "),
		headers: "Authorization, Content-Type, X-Request-ID",
		maxAge:  strconv.Itoa(600),
	}
}

func (c *CORS) allowed(origin string) bool {
	return c.any || slices.Contains(c.origins, origin)
}

func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !c.allowed(origin) {
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		if c.any {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", c.methods)
			h.Set("Access-Control-Allow-Headers", c.headers)
			h.Set("Access-Control-Max-Age", c.maxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
