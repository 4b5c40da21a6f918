// Package panel serves the booth control page: a single embedded HTML page
// that signs in against the REST API, lists loaded sequences with
// Play/Skip/Skip all buttons and shows the live WebSocket event feed.
//
// The assets are embedded with go:embed. A directory configured as
// api.panel_dir replaces them at runtime so the page can be edited without
// rebuilding.
package panel
