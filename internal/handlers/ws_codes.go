// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was missing, invalid or expired.
	NotSeatedError        = 3002 // Authenticated player has no seat in the room.
	InvalidRoomIDError    = 3003 // Target room in the WS URL does not exist or is invalid.
	StreamClosedError     = 3004 // The room dropped the stream (heartbeat timeout, room closed).
)
