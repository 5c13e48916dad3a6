package assets

import "embed"

// FS contains the storefront widget script served under /assets/.
//
//go:embed js
var FS embed.FS
