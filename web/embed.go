// Package web embeds the single-page map frontend served at the root path.
package web

import "embed"

//go:embed index.html app.js styles.css
var Assets embed.FS
