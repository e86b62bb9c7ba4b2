package asset

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a captured asset.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
)

// Error classification tags recorded on failed assets.
const (
	ErrorTypeInsufficientCredits = "insufficient_credits"
	ErrorTypeUploadFailed        = "upload_failed"
)

// Capture modes recorded on assets.
const (
	ModeVisible = "visible"
	ModeRegion  = "region"
	ModeFile    = "file"
)

var allStatuses = []Status{
	StatusDraft,
	StatusUploading,
	StatusUploaded,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// GPSLocation is the capture-time position fix attached when the user enabled
// location and a fix was acquired.
type GPSLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceWebsite is the page the screenshot was taken from.
type SourceWebsite struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Asset is a captured screenshot plus its metadata and lifecycle status.
// ID, payload, and CreatedAt are immutable after creation.
type Asset struct {
	ID          string
	MIMEType    string
	Payload     []byte
	Width       int
	Height      int
	CaptureMode string
	Status      Status

	// Progress is the upload fraction in [0,1]; terminal values are 0 on
	// start/failure and 1 on success.
	Progress     float64
	ErrorMessage string
	ErrorType    string

	Caption string
	GPS     *GPSLocation
	Source  *SourceWebsite

	RemoteContentID string
	RemoteNetworkID string

	// Extra is an open key/value mapping for capture annotations.
	Extra map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds a draft asset with a fresh identifier and capture timestamp.
func New(payload []byte, mimeType string, width, height int, mode string) *Asset {
	now := time.Now().UTC()
	return &Asset{
		ID:          uuid.NewString(),
		MIMEType:    mimeType,
		Payload:     payload,
		Width:       width,
		Height:      height,
		CaptureMode: mode,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetUploading moves the asset into the in-flight state and clears any error
// metadata left over from a previous attempt.
func (a *Asset) SetUploading() {
	a.Status = StatusUploading
	a.Progress = 0
	a.ClearError()
}

// SetUploaded records a successful registration with the remote identifiers.
func (a *Asset) SetUploaded(contentID, networkID string) {
	a.Status = StatusUploaded
	a.Progress = 1
	a.RemoteContentID = contentID
	a.RemoteNetworkID = networkID
	a.ClearError()
}

// SetFailed marks the asset failed with a message and classification tag.
func (a *Asset) SetFailed(message, errorType string) {
	a.Status = StatusFailed
	a.Progress = 0
	a.ErrorMessage = message
	a.ErrorType = errorType
}

// ClearError removes failure metadata; called when a retry begins.
func (a *Asset) ClearError() {
	a.ErrorMessage = ""
	a.ErrorType = ""
}
