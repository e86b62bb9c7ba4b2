package ipc

// ServiceName is the RPC service the daemon registers on the control socket.
const ServiceName = "Snapseal"

// AssetSummary is the payload-free view of an asset returned over the socket.
type AssetSummary struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	ErrorType    string  `json:"errorType,omitempty"`
	Caption      string  `json:"caption,omitempty"`
	CaptureMode  string  `json:"captureMode"`
	MIMEType     string  `json:"mimeType"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	ContentID    string  `json:"contentId,omitempty"`
	NetworkID    string  `json:"networkId,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

// CaptureRequest starts a capture on the daemon.
type CaptureRequest struct {
	Mode        string `json:"mode"`
	Caption     string `json:"caption,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	SourceTitle string `json:"sourceTitle,omitempty"`
}

// CaptureResponse reports the capture outcome.
type CaptureResponse struct {
	Outcome string `json:"outcome"`
	AssetID string `json:"assetId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// UploadRequest enqueues draft assets for upload.
type UploadRequest struct {
	IDs []string `json:"ids"`
}

// UploadResponse acknowledges enqueued uploads.
type UploadResponse struct {
	Enqueued int `json:"enqueued"`
}

// AssetListRequest filters the asset listing by status.
type AssetListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// AssetListResponse carries the matching assets in creation order.
type AssetListResponse struct {
	Assets []AssetSummary `json:"assets"`
}

// QueueRequest is the empty request for queue inspection.
type QueueRequest struct{}

// QueueResponse describes the upload queue.
type QueueResponse struct {
	State   string   `json:"state"`
	Pending []string `json:"pending"`
}

// RetryRequest re-enqueues failed assets.
type RetryRequest struct {
	IDs []string `json:"ids"`
}

// RetryResponse acknowledges the retry.
type RetryResponse struct {
	Retried int `json:"retried"`
}

// RemoveRequest deletes an asset and dequeues it.
type RemoveRequest struct {
	ID string `json:"id"`
}

// RemoveResponse acknowledges the removal.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// PauseRequest sets the queue pause flag.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// PauseResponse reports the resulting queue state.
type PauseResponse struct {
	State string `json:"state"`
}

// ClearFailedRequest is the empty request for pruning failed assets.
type ClearFailedRequest struct{}

// ClearFailedResponse reports how many failed assets were deleted.
type ClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// StatusRequest is the empty request for daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the daemon status snapshot.
type StatusResponse struct {
	Running       bool     `json:"running"`
	PID           int      `json:"pid"`
	QueueState    string   `json:"queueState"`
	Pending       []string `json:"pending"`
	Drafts        int64    `json:"drafts"`
	Failed        int64    `json:"failed"`
	LoggedIn      bool     `json:"loggedIn"`
	RecordsDBPath string   `json:"recordsDbPath"`
	AssetsDBPath  string   `json:"assetsDbPath"`
	LockFilePath  string   `json:"lockFilePath"`
	SocketPath    string   `json:"socketPath"`
}

// SettingsPayload is the settings document exchanged over the socket.
type SettingsPayload struct {
	AutoUpload      bool   `json:"autoUpload"`
	TimestampStamp  bool   `json:"timestampStamp"`
	LocationEnabled bool   `json:"locationEnabled"`
	AttachSource    bool   `json:"attachSource"`
	DefaultCaption  string `json:"defaultCaption"`
}

// SettingsGetRequest is the empty request for reading settings.
type SettingsGetRequest struct{}

// SettingsSetRequest replaces the stored settings.
type SettingsSetRequest struct {
	Settings SettingsPayload `json:"settings"`
}

// SettingsResponse returns the effective settings.
type SettingsResponse struct {
	Settings SettingsPayload `json:"settings"`
}

// LoginRequest stores registration credentials.
type LoginRequest struct {
	Token      string `json:"token"`
	RecorderID string `json:"recorderId,omitempty"`
}

// LogoutRequest is the empty request for clearing credentials.
type LogoutRequest struct{}

// SessionResponse reports whether credentials are stored.
type SessionResponse struct {
	LoggedIn bool `json:"loggedIn"`
}
