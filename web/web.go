// Package web holds the browser front end served at "/".
package web

import "embed"

//go:embed index.html static
var FS embed.FS
