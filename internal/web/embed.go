//go:build embed

package web

import (
	"embed"
	"io/fs"
)

//go:embed embed/public
var embeddedFS embed.FS

// PublicFS strips the "embed/public" prefix so paths are "index.html", "assets/...", etc.
var PublicFS, _ = fs.Sub(embeddedFS, "embed/public")
