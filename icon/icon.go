// Package icon holds the application icon as a fixed SVG document and
// writes it to disk.
package icon

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Filename is the file name the icon is written under.
const Filename = "appicon.svg"

// Document is the complete icon SVG. The geometry and gradient colors are
// a design asset and must be reproduced byte for byte; do not regenerate
// or reformat them.
const Document = `<?xml version="1.0" encoding="UTF-8"?>
<svg width="1024" height="1024" viewBox="0 0 1024 1024" xmlns="http://www.w3.org/2000/svg">
  <defs>
    <linearGradient id="grad" x1="0%" y1="0%" x2="100%" y2="100%">
      <stop offset="0%" style="stop-color:#0088cc;stop-opacity:1" />
      <stop offset="100%" style="stop-color:#00a8ff;stop-opacity:1" />
    </linearGradient>
  </defs>
  <rect width="1024" height="1024" rx="230" fill="url(#grad)"/>
  <path d="M512 256 L768 512 L512 768 L512 600 L256 600 L256 424 L512 424 Z" fill="white" transform="translate(0, 50)"/>
</svg>`

// Write creates or truncates Filename inside dir and writes Document to it
// in a single attempt. It returns the path of the written file.
func Write(dir string) (string, error) {
	path := filepath.Join(dir, Filename)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to create icon file")
	}

	if _, err := f.WriteString(Document); err != nil {
		f.Close()
		return "", errors.Wrap(err, "failed to write icon file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close icon file")
	}
	return path, nil
}
