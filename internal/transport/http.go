// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/kegsync/internal/logger"
	"github.com/MKhiriev/kegsync/models"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Address is the base URL of the keg server; a bare host:port is
	// normalised to http://host:port.
	Address string
	// RequestTimeout bounds every outbound request.
	RequestTimeout time.Duration
	// PollInterval is how often the digest endpoint is polled for server
	// notifications. Defaults to 5 seconds.
	PollInterval time.Duration
}

type httpTransport struct {
	client *resty.Client
	logger *logger.Logger

	mu    sync.Mutex
	token string

	events    chan Event
	pollEvery time.Duration
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	connected bool
	lastSeen  string
}

// NewHTTPTransport constructs an HTTP/REST implementation of [Transport].
// It normalises and validates the base URL from cfg.Address and starts the
// background notification poller that feeds Events.
//
// Returns an error if cfg.Address is empty or cannot be parsed as a valid
// URL.
func NewHTTPTransport(cfg HTTPConfig, log *logger.Logger) (Transport, error) {
	baseURL, err := normalizeBaseURL(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid transport address: %w", err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout)

	pollEvery := cfg.PollInterval
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &httpTransport{
		client:    client,
		logger:    log,
		events:    make(chan Event, 128),
		pollEvery: pollEvery,
		cancel:    cancel,
	}

	t.wg.Add(1)
	go t.pollLoop(ctx)

	return t, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken stores token (whitespace-trimmed) for use in the Authorization
// header of all subsequent authenticated requests.
func (h *httpTransport) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpTransport) authedRequest(ctx context.Context) *resty.Request {
	h.mu.Lock()
	token := h.token
	h.mu.Unlock()

	req := h.client.R().SetContext(ctx)
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

// CreateKeg implements [Transport]. It POSTs the type to
// POST /api/kegs/{collectionId} and decodes the allocation. Responses are
// decoded straight from the body rather than relying on the server sending
// a JSON content type.
func (h *httpTransport) CreateKeg(ctx context.Context, collectionID, kegType string) (models.KegAllocation, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"type": kegType}).
		Post("/api/kegs/" + url.PathEscape(collectionID))
	if err != nil {
		return models.KegAllocation{}, fmt.Errorf("create keg request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.KegAllocation{}, err
	}

	var alloc models.KegAllocation
	if err = json.Unmarshal(resp.Body(), &alloc); err != nil {
		return models.KegAllocation{}, fmt.Errorf("decode create keg response: %w", err)
	}

	return alloc, nil
}

// UpdateKeg implements [Transport]. It PUTs the full record to
// PUT /api/kegs/{collectionId}/{kegId}. Returns [ErrVersionConflict]
// (wrapped) on HTTP 409.
func (h *httpTransport) UpdateKeg(ctx context.Context, req models.UpdateKegRequest) (models.UpdateKegResult, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Put("/api/kegs/" + url.PathEscape(req.CollectionID) + "/" + url.PathEscape(req.KegID))
	if err != nil {
		return models.UpdateKegResult{}, fmt.Errorf("update keg request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.UpdateKegResult{}, err
	}

	var result models.UpdateKegResult
	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return models.UpdateKegResult{}, fmt.Errorf("decode update keg response: %w", err)
	}

	return result, nil
}

// GetKeg implements [Transport]. Returns [ErrNotFound] (wrapped) on 404.
func (h *httpTransport) GetKeg(ctx context.Context, collectionID, kegID string) (models.KegRecord, error) {
	resp, err := h.authedRequest(ctx).
		Get("/api/kegs/" + url.PathEscape(collectionID) + "/" + url.PathEscape(kegID))
	if err != nil {
		return models.KegRecord{}, fmt.Errorf("get keg request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.KegRecord{}, err
	}

	var rec models.KegRecord
	if err = json.Unmarshal(resp.Body(), &rec); err != nil {
		return models.KegRecord{}, fmt.Errorf("decode get keg response: %w", err)
	}

	return rec, nil
}

// DeleteKeg implements [Transport].
func (h *httpTransport) DeleteKeg(ctx context.Context, collectionID, kegID string) error {
	resp, err := h.authedRequest(ctx).
		Delete("/api/kegs/" + url.PathEscape(collectionID) + "/" + url.PathEscape(kegID))
	if err != nil {
		return fmt.Errorf("delete keg request: %w", err)
	}

	return mapHTTPError(resp)
}

// ListKegs implements [Transport]. The options travel in the body of
// POST /api/kegs/{collectionId}/list; the server orders results ascending
// by keg id.
func (h *httpTransport) ListKegs(ctx context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(opts).
		Post("/api/kegs/" + url.PathEscape(collectionID) + "/list")
	if err != nil {
		return nil, fmt.Errorf("list kegs request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var records []models.KegRecord
	if err = json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("decode list kegs response: %w", err)
	}

	return records, nil
}

// QueryKegsByProp implements [Transport].
func (h *httpTransport) QueryKegsByProp(ctx context.Context, collectionID, kegType string, filter map[string]string) ([]models.KegRecord, error) {
	body := map[string]any{"type": kegType, "filter": filter}

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/api/kegs/" + url.PathEscape(collectionID) + "/query")
	if err != nil {
		return nil, fmt.Errorf("query kegs request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var records []models.KegRecord
	if err = json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("decode query kegs response: %w", err)
	}

	return records, nil
}

// FetchUpdatedIDs implements [Transport].
func (h *httpTransport) FetchUpdatedIDs(ctx context.Context, kegType, sinceVersion string) ([]string, error) {
	resp, err := h.authedRequest(ctx).
		SetQueryParam("type", kegType).
		SetQueryParam("since", sinceVersion).
		Get("/api/updates")
	if err != nil {
		return nil, fmt.Errorf("fetch updated ids request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var ids []string
	if err = json.Unmarshal(resp.Body(), &ids); err != nil {
		return nil, fmt.Errorf("decode updated ids response: %w", err)
	}

	return ids, nil
}

// FetchDescriptor implements [Transport]. Returns [ErrNotFound] (wrapped)
// when the file has no separated descriptor yet.
func (h *httpTransport) FetchDescriptor(ctx context.Context, fileID string) (models.FileDescriptor, error) {
	resp, err := h.authedRequest(ctx).
		Get("/api/descriptors/" + url.PathEscape(fileID))
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("fetch descriptor request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.FileDescriptor{}, err
	}

	var d models.FileDescriptor
	if err = json.Unmarshal(resp.Body(), &d); err != nil {
		return models.FileDescriptor{}, fmt.Errorf("decode fetch descriptor response: %w", err)
	}

	return d, nil
}

// SaveDescriptor implements [Transport]. Returns [ErrVersionConflict]
// (wrapped) on HTTP 409, which migration treats as benign.
func (h *httpTransport) SaveDescriptor(ctx context.Context, d models.FileDescriptor) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(d).
		Put("/api/descriptors/" + url.PathEscape(d.FileID))
	if err != nil {
		return fmt.Errorf("save descriptor request: %w", err)
	}

	return mapHTTPError(resp)
}

// Events implements [Transport].
func (h *httpTransport) Events() <-chan Event {
	return h.events
}

// Close implements [Transport]. It stops the poll loop and closes the event
// stream once the loop has exited.
func (h *httpTransport) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		h.wg.Wait()
		close(h.events)
	})
	return nil
}

// pollLoop drives the notification side of the contract: it polls the digest
// endpoint, turns each reported digest into an EventDigestUpdate, and
// synthesises connection lifecycle events from poll success/failure
// transitions.
func (h *httpTransport) pollLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.pollEvery)
	defer ticker.Stop()

	for {
		h.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *httpTransport) pollOnce(ctx context.Context) {
	resp, err := h.authedRequest(ctx).
		SetQueryParam("since", h.lastSeen).
		Get("/api/digests")
	if err != nil || mapHTTPError(resp) != nil {
		if h.connected {
			h.connected = false
			h.emit(Event{Kind: EventDisconnected})
		}
		return
	}

	if !h.connected {
		h.connected = true
		h.emit(Event{Kind: EventConnected})
		h.emit(Event{Kind: EventAuthenticated})
	}

	var digests []models.Digest
	if err := json.Unmarshal(resp.Body(), &digests); err != nil {
		h.logger.Warn().Err(err).Msg("decode digest poll response")
		return
	}

	for _, d := range digests {
		h.lastSeen = models.MaxUpdateID(h.lastSeen, d.MaxUpdateID)
		h.emit(Event{Kind: EventDigestUpdate, Digest: d})
	}
}

// emit never blocks the poll loop; a full buffer drops the event and a
// later poll re-reports the digest state.
func (h *httpTransport) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn().Int("kind", int(ev.Kind)).Msg("event buffer full, dropping event")
	}
}
