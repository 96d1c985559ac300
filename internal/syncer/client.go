package syncer

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/logger"
	"codeberg.org/kaibil/xark/internal/store"
)

// PayloadSchemaVersion identifies the upload body layout.
const PayloadSchemaVersion = 1

// Payload is the day's data in transport form.
type Payload struct {
	SchemaVersion int                  `json:"schema_version"`
	Status        store.StatusRow      `json:"status"`
	Journal       []store.JournalRow   `json:"journal"`
	Device        *store.DeviceRow     `json:"device"`
	Excepts       []store.ExceptionRow `json:"excepts"`
}

// Client talks to the remote collector endpoint. The serial number and
// UUID pair doubles as the upload credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
	user       string
	serialNum  string
	uuid       string
}

func NewClient(baseURL, user, serialNum, uuid string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		user:       user,
		serialNum:  serialNum,
		uuid:       uuid,
	}
}

// Probe checks remote availability. Any transport error or non-200
// response means unavailable; the caller retries later.
func (c *Client) Probe(ctx context.Context) bool {
	form := url.Values{}
	form.Set("user", c.user)
	form.Set("client_id", c.serialNum)
	form.Set("client_secret", c.uuid)

	code, err := c.postForm(ctx, c.baseURL, form, false)
	if err != nil {
		logger.Debug().Err(err).Msg("Availability probe failed")
		return false
	}

	return code == http.StatusOK
}

// Upload posts the serialized payload with basic-auth credentials.
// Success is exactly a 200 response.
func (c *Client) Upload(ctx context.Context, payload *Payload) error {
	errFactory := errors.New()

	body, err := json.Marshal(payload)
	if err != nil {
		return errFactory.Wrap(errors.ErrPayloadEncode, err)
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.user)
	form.Set("client", c.serialNum)
	form.Set("password", "valid")
	form.Set("scope", "profile")
	form.Set("data", string(body))

	code, err := c.postForm(ctx, c.baseURL+"/data", form, true)
	if err != nil {
		return errFactory.Wrap(errors.ErrRemoteUnavailable, err)
	}
	if code != http.StatusOK {
		return errFactory.WithData(errors.ErrUploadRejected, code)
	}

	return nil
}

func (c *Client) postForm(ctx context.Context, target string, form url.Values, authed bool) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target,
		strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authed {
		req.SetBasicAuth(c.serialNum, c.uuid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
