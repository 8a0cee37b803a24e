// Package api provides the local HTTP API and WebSocket state feed for the
// amplifier bridge.
//
// Endpoints (all under /api/v1):
//
//	GET  /health          liveness, no auth
//	GET  /amp             cached status and diagnostics (amp:read)
//	POST /amp/commands    run a control command (amp:control)
//	GET  /amp/readback    read volume and gain from the hardware (amp:readback)
//	GET  /history         operation log (history:read)
//	POST /auth/ws-ticket  single-use WebSocket ticket
//	GET  /ws?ticket=...   state feed, channel "amp.state_changed"
//
// Protected routes take an HS256 bearer token (see package auth). With no
// secret configured every caller is treated as an admin.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
