package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"snapseal/internal/asset"
)

const defaultRequestTimeout = 60 * time.Second

// Receipt holds the identifiers the registry assigns to a registered asset.
type Receipt struct {
	ContentID string
	NetworkID string
}

// Client registers captured assets with the remote registry.
type Client interface {
	// Register submits the asset payload, its signed-metadata manifest, and
	// caption. Errors wrap one of the package sentinels so callers can
	// classify the failure.
	Register(ctx context.Context, a *asset.Asset, manifest []byte) (Receipt, error)
}

// HTTPDoer abstracts the HTTP client used for registry requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token for each request so credential
// changes take effect without rebuilding the client.
type TokenSource func(ctx context.Context) (string, error)

// HTTPClient talks to the registry's register endpoint over HTTPS.
type HTTPClient struct {
	baseURL string
	http    HTTPDoer
	token   TokenSource
}

// NewHTTPClient builds a registry client. A nil doer gets a default
// http.Client with the provided timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, doer HTTPDoer, token TokenSource) *HTTPClient {
	if doer == nil {
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		token:   token,
	}
}

type registerResponse struct {
	ContentID string `json:"content_id"`
	NetworkID string `json:"network_id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Register implements Client.
func (c *HTTPClient) Register(ctx context.Context, a *asset.Asset, manifest []byte) (Receipt, error) {
	if a == nil {
		return Receipt{}, Wrap(ErrRejected, "register", "asset is nil", nil)
	}
	endpoint, err := url.JoinPath(c.baseURL, "api", "v1", "register")
	if err != nil {
		return Receipt{}, Wrap(ErrRejected, "register", "build url", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	filePart, err := writer.CreateFormFile("file", fileName(a))
	if err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "create file part", err)
	}
	if _, err := filePart.Write(a.Payload); err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "write file part", err)
	}
	if err := writer.WriteField("manifest", string(manifest)); err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "write manifest part", err)
	}
	if a.Caption != "" {
		if err := writer.WriteField("caption", a.Caption); err != nil {
			return Receipt{}, Wrap(ErrTransient, "register", "write caption part", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "finalize form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "new request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		token, tokenErr := c.token(ctx)
		if tokenErr != nil {
			return Receipt{}, Wrap(ErrUnauthorized, "register", "load credentials", tokenErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "http error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "read response", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return Receipt{}, classifyFailure(resp.StatusCode, data)
	}

	var decoded registerResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Receipt{}, Wrap(ErrTransient, "register", "decode response", err)
	}
	if strings.TrimSpace(decoded.ContentID) == "" {
		return Receipt{}, Wrap(ErrRejected, "register", "response missing content id", nil)
	}
	return Receipt{ContentID: decoded.ContentID, NetworkID: decoded.NetworkID}, nil
}

func classifyFailure(status int, body []byte) error {
	code, message := parseErrorBody(body)
	detail := message
	if detail == "" {
		detail = fmt.Sprintf("http status %d", status)
	}

	switch {
	case IsInsufficientCredits(code, message):
		return Wrap(ErrInsufficientCredits, "register", detail, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Wrap(ErrUnauthorized, "register", detail, nil)
	case status == http.StatusPaymentRequired:
		return Wrap(ErrInsufficientCredits, "register", detail, nil)
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return Wrap(ErrTransient, "register", detail, nil)
	default:
		return Wrap(ErrRejected, "register", detail, nil)
	}
}

func parseErrorBody(body []byte) (code, message string) {
	var decoded errorResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", strings.TrimSpace(string(body))
	}
	code = decoded.Code
	message = decoded.Message
	if code == "" {
		code = decoded.Error.Code
	}
	if message == "" {
		message = decoded.Error.Message
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	return code, message
}

func fileName(a *asset.Asset) string {
	ext := ".png"
	switch a.MIMEType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return a.ID + ext
}
