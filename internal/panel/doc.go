// Package panel serves the browser view of a discovery session as embedded
// static assets.
//
// The page takes its first device list from the /api/v1/ws hello frame,
// follows the same stream for updates, and drives Scan, Stop and About
// through the REST endpoints. Handler falls back to index.html for unknown
// paths so deep links reload the page.
package panel
