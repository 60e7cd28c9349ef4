package rt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request constants.
const (
	// basePath is the RT REST2 API prefix appended to the base URL.
	basePath = "/REST/2.0"

	// defaultTimeout bounds each HTTP call when the caller supplies no
	// deadline of its own.
	defaultTimeout = 30 * time.Second

	// maxErrorBody limits how much of an error response body is read for
	// inclusion in error messages.
	maxErrorBody = 2048
)

// Logger is the optional logging interface accepted by SetLogger.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Client is a stateless RT REST2 API client. It holds only the base URL and
// credential; every operation issues a single HTTP call.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     Logger
}

// NewClient creates an RT client for the given base URL and API token.
//
// The base URL must have passed ValidateEndpoint; NewClient does not
// re-validate. A trailing slash is stripped so path joining is uniform.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// SetHTTPClient replaces the underlying HTTP client. Used by callers that
// need custom transports or timeouts, and by tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetLogger attaches a logger for soft-failure warnings. Optional; without
// it soft failures are silent.
func (c *Client) SetLogger(l Logger) {
	c.logger = l
}

// TicketDisplayURL returns the human-facing URL for a ticket.
func (c *Client) TicketDisplayURL(ticketID int) string {
	return fmt.Sprintf("%s/Ticket/Display.html?id=%d", c.baseURL, ticketID)
}

// Probe checks connectivity and credentials with a lightweight GET.
//
// Returns nil on HTTP 200. 401 and 403 map to ErrInvalidAuth (distinguishing
// a rejected token from one lacking permission); any other non-200 maps to
// ErrAPI and transport failures to ErrCannotConnect.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.get(ctx, "/rt", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API token", ErrInvalidAuth)
	case http.StatusForbidden:
		return fmt.Errorf("%w: API token lacks permissions", ErrInvalidAuth)
	default:
		return fmt.Errorf("%w: probe returned status %d", ErrAPI, resp.StatusCode)
	}
}

// SearchTickets returns the open tickets in queue whose DeviceId custom
// field matches deviceID, oldest first. Subject narrows the search when
// non-empty. An empty result is not an error.
func (c *Client) SearchTickets(ctx context.Context, queue, deviceID, subject string) ([]Ticket, error) {
	return c.searchTickets(ctx, openTicketQuery(queue, deviceID, subject))
}

// SearchTicketsForAsset returns the open tickets in queue referring to the
// given asset, oldest first. Subject narrows the search when non-empty.
func (c *Client) SearchTicketsForAsset(ctx context.Context, queue string, assetID int, subject string) ([]Ticket, error) {
	return c.searchTickets(ctx, openTicketForAssetQuery(queue, assetID, subject))
}

func (c *Client) searchTickets(ctx context.Context, query string) ([]Ticket, error) {
	resp, err := c.get(ctx, "/tickets", url.Values{"query": {query}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ticket search returned status %d", ErrAPI, resp.StatusCode)
	}

	var result struct {
		Items []Ticket `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding ticket search response: %w", ErrAPI, err)
	}
	return result.Items, nil
}

// SearchAsset returns the asset in catalog whose DeviceId custom field
// matches deviceID, or nil if there is none.
//
// Soft failure: search errors are logged and reported as "no asset" so an
// asset-side outage never blocks ticket creation.
func (c *Client) SearchAsset(ctx context.Context, catalog, deviceID string) *Asset {
	resp, err := c.get(ctx, "/assets", url.Values{"query": {assetQuery(catalog, deviceID)}})
	if err != nil {
		c.warn("asset search error", "device_id", deviceID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.warn("asset search failed", "device_id", deviceID, "status", resp.StatusCode)
		return nil
	}

	var result struct {
		Items []Asset `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.warn("decoding asset search response", "device_id", deviceID, "error", err)
		return nil
	}
	if len(result.Items) == 0 {
		return nil
	}
	return &result.Items[0]
}

// CreateAsset creates a new asset in catalog with the DeviceId custom field
// set to deviceID and the present attribute fields written. Returns the new
// asset's identifier.
//
// A non-2xx response is returned as an error rather than logged: the caller
// (the reconciliation sweep) counts it against the one device and continues.
func (c *Client) CreateAsset(ctx context.Context, catalog, name, deviceID string, attrs AssetAttributes) (int, error) {
	customFields := attrs.customFields()
	customFields[FieldDeviceID] = deviceID

	payload := map[string]any{
		"Name":         name,
		"Catalog":      catalog,
		"CustomFields": customFields,
	}

	resp, err := c.post(ctx, "/asset", payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return 0, fmt.Errorf("%w: asset create returned status %d: %s",
			ErrAPI, resp.StatusCode, readErrorBody(resp.Body))
	}

	var result struct {
		ID ID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: decoding asset create response: %w", ErrAPI, err)
	}
	return int(result.ID), nil
}

// UpdateAsset overwrites the present attribute fields of an existing asset.
// Name and Status are core fields and are only written when non-empty, so a
// status-only transition (MarkRemoved) leaves the rest of the record alone.
//
// Writing the same attributes twice is idempotent: RT stores the same state.
func (c *Client) UpdateAsset(ctx context.Context, assetID int, name string, attrs AssetAttributes) error {
	payload := map[string]any{}
	if name != "" {
		payload["Name"] = name
	}
	if attrs.Status != "" {
		payload["Status"] = attrs.Status
	}
	if customFields := attrs.customFields(); len(customFields) > 0 {
		payload["CustomFields"] = customFields
	}

	resp, err := c.put(ctx, fmt.Sprintf("/asset/%d", assetID), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return fmt.Errorf("%w: asset update returned status %d: %s",
			ErrAPI, resp.StatusCode, readErrorBody(resp.Body))
	}
	return nil
}

// ListAssets enumerates the active assets in catalog as sparse references
// (id only). RT excludes deleted and stolen assets from search results, so
// retired assets never reappear in the sweep.
func (c *Client) ListAssets(ctx context.Context, catalog string) ([]Asset, error) {
	resp, err := c.get(ctx, "/assets", url.Values{"query": {catalogQuery(catalog)}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: asset list returned status %d", ErrAPI, resp.StatusCode)
	}

	var result struct {
		Items []Asset `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding asset list response: %w", ErrAPI, err)
	}
	return result.Items, nil
}

// GetAsset fetches the full record of one asset, including custom fields.
//
// Soft failure: errors are logged and reported as nil so one unreadable
// asset does not abort an orphan-cleanup sweep.
func (c *Client) GetAsset(ctx context.Context, assetID int) *Asset {
	resp, err := c.get(ctx, fmt.Sprintf("/asset/%d", assetID), nil)
	if err != nil {
		c.warn("asset fetch error", "asset_id", assetID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.warn("asset fetch failed", "asset_id", assetID, "status", resp.StatusCode)
		return nil
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		c.warn("decoding asset response", "asset_id", assetID, "error", err)
		return nil
	}
	return &asset
}

// CreateTicket creates a new ticket and returns its identifier.
//
// The body is the request text followed, when Area or Address are set, by a
// blank line and "Location: <address>" and "Area: <area>" lines in that
// order. Ticket creation is user-facing, so failures propagate as errors.
func (c *Client) CreateTicket(ctx context.Context, req TicketRequest) (int, error) {
	customFields := map[string]string{FieldDeviceID: req.DeviceID}
	if req.DeviceInfoURL != "" {
		customFields[FieldDeviceInfo] = req.DeviceInfoURL
	}
	if req.Area != "" {
		customFields[FieldArea] = req.Area
	}
	if req.Address != "" {
		customFields[FieldAddress] = req.Address
	}

	payload := map[string]any{
		"Queue":        req.Queue,
		"Subject":      req.Subject,
		"Content":      ticketContent(req),
		"CustomFields": customFields,
	}

	resp, err := c.post(ctx, "/ticket", payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return 0, fmt.Errorf("%w: ticket create returned status %d: %s",
			ErrAPI, resp.StatusCode, readErrorBody(resp.Body))
	}

	var result struct {
		ID ID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: decoding ticket create response: %w", ErrAPI, err)
	}
	return int(result.ID), nil
}

// ticketContent composes the ticket body with the optional location trailer.
func ticketContent(req TicketRequest) string {
	parts := []string{req.Text}
	if req.Area != "" || req.Address != "" {
		parts = append(parts, "")
		if req.Address != "" {
			parts = append(parts, "Location: "+req.Address)
		}
		if req.Area != "" {
			parts = append(parts, "Area: "+req.Area)
		}
	}
	return strings.Join(parts, "\n")
}

// AddComment appends a comment to an existing ticket. Commenting is central
// to the deduplication path, so failures propagate as errors.
func (c *Client) AddComment(ctx context.Context, ticketID int, text string) error {
	reqURL := fmt.Sprintf("%s%s/ticket/%d/comment", c.baseURL, basePath, ticketID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("building comment request: %w", err)
	}
	httpReq.Header.Set("Authorization", "token "+c.token)
	httpReq.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return fmt.Errorf("%w: comment returned status %d", ErrAPI, resp.StatusCode)
	}
	return nil
}

// LinkTicketToAsset sets the ticket's RefersTo relationship to the asset.
//
// Soft failure: a failed link is logged and reported as false so it never
// undoes a successful ticket creation.
func (c *Client) LinkTicketToAsset(ctx context.Context, ticketID, assetID int) bool {
	payload := map[string]any{"RefersTo": assetRef(assetID)}

	resp, err := c.put(ctx, fmt.Sprintf("/ticket/%d", ticketID), payload)
	if err != nil {
		c.warn("ticket link error", "ticket_id", ticketID, "asset_id", assetID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		c.warn("ticket link failed",
			"ticket_id", ticketID, "asset_id", assetID,
			"status", resp.StatusCode, "body", readErrorBody(resp.Body))
		return false
	}
	return true
}

// get issues an authenticated GET against the REST2 API.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	reqURL := c.baseURL + basePath + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setJSONHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	return resp, nil
}

// post issues an authenticated POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, payload)
}

// put issues an authenticated PUT with a JSON body.
func (c *Client) put(ctx context.Context, path string, payload any) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, path, payload)
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+basePath+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setJSONHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	return resp, nil
}

// setJSONHeaders sets the credential and JSON content negotiation headers.
func (c *Client) setJSONHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// warn logs through the attached logger, if any.
func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// is2xx reports whether status is a success status.
func is2xx(status int) bool {
	return status >= 200 && status < 300
}

// readErrorBody reads a bounded amount of a response body for error messages.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
