package app

import (
	"net/http"
	"strings"

	"vrhub/api/internal/auth"
)

type authMode int

const (
	// authNone routes skip token validation entirely.
	authNone authMode = iota
	// authRequired routes reject requests without a valid token.
	authRequired
	// authOptional routes run with or without an identity; visibility
	// filtering downstream handles the difference.
	authOptional
)

// identity is the caller as established from a bearer token. Zero value
// means anonymous.
type identity struct {
	AccountID string
	Handle    string
	Rank      string
}

type params map[string]string

type handlerFunc func(w http.ResponseWriter, r *http.Request, p params, id identity)

type route struct {
	method  string
	pattern []string
	auth    authMode
	handle  handlerFunc
}

// router matches on slash-split paths: literal segments byte-compare,
// {name} segments capture, and lengths must agree. Trailing slashes are
// stripped and the query string never participates.
type router struct {
	routes   []route
	validate func(token string) (*auth.Claims, error)
}

func (rt *router) add(method, pattern string, mode authMode, h handlerFunc) {
	rt.routes = append(rt.routes, route{
		method:  method,
		pattern: splitPath(pattern),
		auth:    mode,
		handle:  h,
	})
}

func (rt *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	for _, candidate := range rt.routes {
		if candidate.method != r.Method {
			continue
		}
		p, ok := match(candidate.pattern, parts)
		if !ok {
			continue
		}

		var id identity
		if candidate.auth != authNone {
			token := bearerToken(r)
			if token == "" && candidate.auth == authRequired {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if token != "" {
				claims, err := rt.validate(token)
				if err != nil {
					// Every failure reads the same from outside.
					if candidate.auth == authRequired {
						writeError(w, http.StatusUnauthorized, "Unauthorized")
						return
					}
				} else {
					id = identity{AccountID: claims.Subject, Handle: claims.Handle, Rank: claims.Rank}
				}
			}
			if candidate.auth == authRequired && id.AccountID == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}

		candidate.handle(w, r, p, id)
		return
	}
	writeError(w, http.StatusNotFound, "Not found")
}

func match(pattern, parts []string) (params, bool) {
	if len(pattern) != len(parts) {
		return nil, false
	}
	p := params{}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			p[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return p, true
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return []string{}
	}
	return strings.Split(path, "/")
}
