package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ViewRevalidator versions rendered views by path. Bumping a path invalidates every
// view at or below it, so browsers holding an ETag for it fetch the page again.
type ViewRevalidator struct {
	mu   sync.RWMutex
	gens map[string]uint64
}

func NewViewRevalidator() *ViewRevalidator {
	return &ViewRevalidator{gens: make(map[string]uint64)}
}

func (v *ViewRevalidator) Revalidate(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gens[path]++
}

// Generation sums the versions of path and all its ancestors.
func (v *ViewRevalidator) Generation(path string) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var gen uint64
	for p, g := range v.gens {
		if p == "/" || path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			gen += g
		}
	}
	return gen
}

// ETag identifies the view of path rendered for userID at the current generation.
func (v *ViewRevalidator) ETag(path, userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return fmt.Sprintf(`W/"%d-%s"`, v.Generation(path), hex.EncodeToString(sum[:6]))
}

// NotModified sets the ETag and reports whether the client already holds this view.
func (v *ViewRevalidator) NotModified(w http.ResponseWriter, r *http.Request, userID string) bool {
	etag := v.ETag(r.URL.Path, userID)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
