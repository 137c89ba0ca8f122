package server

import (
	"embed"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed static/*
var staticFiles embed.FS

// staticModTime is the process start; embedded files carry no modification time.
var staticModTime = time.Now()

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create static sub filesystem: " + err.Error())
	}
	return subFS
}

// ServeStatic writes an embedded asset, honouring If-Modified-Since and Range.
func ServeStatic(w http.ResponseWriter, r *http.Request, name string) error {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if name == "." || strings.HasPrefix(name, "..") {
		return fs.ErrNotExist
	}
	f, err := StaticFilesFS().Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fs.ErrNotExist
	}
	content, ok := f.(io.ReadSeeker)
	if !ok {
		return errors.New("embedded file is not seekable")
	}

	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	http.ServeContent(w, r, name, staticModTime, content)
	return nil
}
