package middleware

import (
	"net/http"
	"strings"
)

// Keys holds the API keys accepted on public (read) and admin (write)
// routes. An empty set disables the corresponding check, which keeps
// local development friction-free.
type Keys struct {
	Public []string
	Admin  []string
}

func keyFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func toSet(keys ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, ks := range keys {
		for _, k := range ks {
			if k != "" {
				set[k] = true
			}
		}
	}
	return set
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireAny admits requests carrying either a public or an admin key.
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	set := toSet(keys.Public, keys.Admin)
	return func(next http.Handler) http.Handler {
		if len(set) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if set[keyFrom(r)] {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireAdmin admits only requests carrying an admin key.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	set := toSet(keys.Admin)
	return func(next http.Handler) http.Handler {
		if len(set) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if set[keyFrom(r)] {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusForbidden, "forbidden")
		})
	}
}
