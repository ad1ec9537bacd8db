package pipemirror

import _ "embed"

// Version is the release of this module, including a trailing newline.
//
//go:embed VERSION
var Version string
