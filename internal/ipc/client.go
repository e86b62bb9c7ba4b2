package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC client for a running daemon's control socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket. It fails fast when no daemon is
// listening so CLI commands can report "daemon not running" promptly.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("ipc: connect to daemon at %s: %w", path, err)
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the socket connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(method string, req, resp any) error {
	return c.rpc.Call(ServiceName+"."+method, req, resp)
}

// Capture asks the daemon to take a screenshot.
func (c *Client) Capture(req CaptureRequest) (CaptureResponse, error) {
	var resp CaptureResponse
	err := c.call("Capture", req, &resp)
	return resp, err
}

// Upload enqueues draft assets for registration.
func (c *Client) Upload(ids ...string) (UploadResponse, error) {
	var resp UploadResponse
	err := c.call("Upload", UploadRequest{IDs: ids}, &resp)
	return resp, err
}

// Assets lists stored assets, optionally filtered by status name.
func (c *Client) Assets(statuses ...string) (AssetListResponse, error) {
	var resp AssetListResponse
	err := c.call("Assets", AssetListRequest{Statuses: statuses}, &resp)
	return resp, err
}

// Queue reports the upload queue state and pending asset IDs.
func (c *Client) Queue() (QueueResponse, error) {
	var resp QueueResponse
	err := c.call("Queue", QueueRequest{}, &resp)
	return resp, err
}

// Retry re-enqueues failed assets and resumes the queue.
func (c *Client) Retry(ids ...string) (RetryResponse, error) {
	var resp RetryResponse
	err := c.call("Retry", RetryRequest{IDs: ids}, &resp)
	return resp, err
}

// Remove deletes an asset.
func (c *Client) Remove(id string) (RemoveResponse, error) {
	var resp RemoveResponse
	err := c.call("Remove", RemoveRequest{ID: id}, &resp)
	return resp, err
}

// Pause sets or clears the queue pause flag.
func (c *Client) Pause(paused bool) (PauseResponse, error) {
	var resp PauseResponse
	err := c.call("Pause", PauseRequest{Paused: paused}, &resp)
	return resp, err
}

// ClearFailed deletes all failed assets.
func (c *Client) ClearFailed() (ClearFailedResponse, error) {
	var resp ClearFailedResponse
	err := c.call("ClearFailed", ClearFailedRequest{}, &resp)
	return resp, err
}

// Status reports the daemon status snapshot.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.call("Status", StatusRequest{}, &resp)
	return resp, err
}

// SettingsGet returns the effective settings.
func (c *Client) SettingsGet() (SettingsResponse, error) {
	var resp SettingsResponse
	err := c.call("SettingsGet", SettingsGetRequest{}, &resp)
	return resp, err
}

// SettingsSet replaces the stored settings.
func (c *Client) SettingsSet(payload SettingsPayload) (SettingsResponse, error) {
	var resp SettingsResponse
	err := c.call("SettingsSet", SettingsSetRequest{Settings: payload}, &resp)
	return resp, err
}

// Login stores registration credentials on the daemon.
func (c *Client) Login(token, recorderID string) (SessionResponse, error) {
	var resp SessionResponse
	err := c.call("Login", LoginRequest{Token: token, RecorderID: recorderID}, &resp)
	return resp, err
}

// Logout clears stored credentials.
func (c *Client) Logout() (SessionResponse, error) {
	var resp SessionResponse
	err := c.call("Logout", LogoutRequest{}, &resp)
	return resp, err
}
