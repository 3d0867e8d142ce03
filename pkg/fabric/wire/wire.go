// Package wire defines the JSON shapes exchanged over the fabric's HTTP
// surface, shared by the server (pkg/fabric/httpsurface) and its clients
// (pkg/fabric/probe, pkg/fabric/discovery) so both sides decode the same
// struct.
package wire

// HealthResponse is the body of a successful GET /health.
type HealthResponse struct {
	Healthy             bool    `json:"healthy"`
	Version             string  `json:"version"`
	CapabilityAvailable bool    `json:"capabilityAvailable"`
	WorkspaceName       string  `json:"workspaceName"`
	WorkspacePath       string  `json:"workspacePath"`
	InstanceID          string  `json:"instanceId"`
	Port                int     `json:"port"`
	PID                 int     `json:"pid"`
	Uptime              float64 `json:"uptime"`
}

// InstanceRecord is one entry of a GET /instances response. Verified is
// only populated when the request carried strict=1; its absence means
// "never checked," not "checked and live."
type InstanceRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WorkspacePath string `json:"workspacePath"`
	Port          int    `json:"port"`
	PID           int    `json:"pid"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	Verified      *bool  `json:"verified,omitempty"`
}

// InstancesResponse is the body of a successful GET /instances.
type InstancesResponse struct {
	Instances []InstanceRecord `json:"instances"`
}

// SendRequest is the body of POST /instance/{id}/send.
type SendRequest struct {
	Content string `json:"content"`
}

// SendResponse is the body of any response to POST /instance/{id}/send.
type SendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the plain error body used for origin-policy rejections,
// which never carry the success/error envelope since they precede any
// route-specific handling.
type ErrorResponse struct {
	Error string `json:"error"`
}
