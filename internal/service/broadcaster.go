package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToRun(runID string, msgType string, payload interface{})
	CloseRun(runID string)
}
