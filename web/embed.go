package web

import "embed"

// FS contains the control panel page and its assets.
//
//go:embed *.html *.css *.js
var FS embed.FS
