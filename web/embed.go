package web

import "embed"

// FS contains the embedded status page.
//
//go:embed index.html
var FS embed.FS
