package cookies

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrsteele09/go-feed-server/identity"
	"github.com/rs/zerolog/log"
)

var _ identity.CookieStore = (*Jar)(nil)

type jarEntry struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// Jar is a file-backed cookie store for command line clients, playing the part the
// browser's cookie jar plays for the web UI.
type Jar struct {
	mu      sync.Mutex
	path    string
	entries map[string]jarEntry
	now     func() time.Time
}

func OpenJar(path string) (*Jar, error) {
	j := &Jar{path: path, entries: make(map[string]jarEntry), now: time.Now}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return j, nil
	}
	if err := json.Unmarshal(data, &j.entries); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Jar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[name]
	if !ok {
		return "", false
	}
	if !e.Expires.IsZero() && !j.now().Before(e.Expires) {
		delete(j.entries, name)
		return "", false
	}
	return e.Value, true
}

func (j *Jar) Set(name, value string, opts identity.CookieOptions) {
	if opts.MaxAge < 0 {
		j.Remove(name, opts)
		return
	}
	j.mu.Lock()
	e := jarEntry{Value: value}
	if opts.MaxAge > 0 {
		e.Expires = j.now().Add(time.Duration(opts.MaxAge) * time.Second)
	}
	j.entries[name] = e
	j.mu.Unlock()
	j.persist()
}

func (j *Jar) Remove(name string, _ identity.CookieOptions) {
	j.mu.Lock()
	delete(j.entries, name)
	j.mu.Unlock()
	j.persist()
}

func (j *Jar) persist() {
	if err := j.Save(); err != nil {
		log.Err(err).Str("path", j.path).Msg("Failed to persist cookie jar")
	}
}

// Save writes the jar atomically with owner-only permissions.
func (j *Jar) Save() error {
	j.mu.Lock()
	data, err := json.MarshalIndent(j.entries, "", "  ")
	j.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}
