// Package daemon coordinates the long-running bookforge process.
//
// It wires configuration, the content store, the generation workflow and the
// export engine into a single lifecycle with flock-based locking to prevent
// multiple instances against one data directory. The daemon serves the HTTP
// API (chi router, bearer auth, per-IP rate limiting, websocket progress
// events) and reports provider availability alongside lane status.
//
// Keep orchestration logic here: generation steps live in workflow and
// rendering lives in export, while the daemon focuses on startup, shutdown,
// and request routing.
package daemon
