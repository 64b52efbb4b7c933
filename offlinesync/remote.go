// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aaglobalreachgmbh/fieldsync/internal/auth"
	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
)

// RemoteService is the engine's boundary to the hosted backend. Upload
// calls are create operations keyed by the authenticated user; fetch
// calls are bulk reads of the active reference catalogs. Both are opaque
// request/response calls that either succeed or fail.
type RemoteService interface {
	UploadOffer(ctx context.Context, offer offlinestore.PendingOffer) error
	UploadCalculation(ctx context.Context, calc offlinestore.PendingCalculation) error
	UploadVisit(ctx context.Context, visit offlinestore.PendingVisit) error
	UploadPhoto(ctx context.Context, photo offlinestore.PendingPhoto) error

	FetchHardwareCatalog(ctx context.Context) ([]offlinestore.HardwareCatalogItem, error)
	FetchTariffs(ctx context.Context) ([]offlinestore.TariffItem, error)
	FetchCustomers(ctx context.Context) ([]offlinestore.CachedCustomer, error)
	FetchChecklists(ctx context.Context) ([]offlinestore.CachedChecklist, error)
}

// HTTPRemote talks JSON over HTTP to the backend's sync endpoints.
// Every call runs under its own timeout so a hung request can never hold
// the sync cycle's exclusion lock indefinitely.
type HTTPRemote struct {
	BaseURL string
	Token   auth.TokenFunc
	HTTP    *http.Client

	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPRemote creates a remote client. timeout bounds each call; zero
// falls back to 30 seconds.
func NewHTTPRemote(baseURL string, token auth.TokenFunc, timeout time.Duration, logger *slog.Logger) *HTTPRemote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRemote{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// offerUpload is the create payload for the offers resource. The client
// id travels with it so a replayed upload can be deduplicated server-side.
type offerUpload struct {
	ClientID  string          `json:"clientId"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"createdAt"`
	IsDraft   bool            `json:"isDraft"`
}

type calculationUpload struct {
	ClientID  string          `json:"clientId"`
	Config    json.RawMessage `json:"config"`
	Summary   string          `json:"summary"`
	CreatedAt time.Time       `json:"createdAt"`
}

type visitUpload struct {
	ClientID           string          `json:"clientId"`
	CustomerID         string          `json:"customerId"`
	VisitDate          time.Time       `json:"visitDate"`
	LocationLat        *float64        `json:"locationLat,omitempty"`
	LocationLng        *float64        `json:"locationLng,omitempty"`
	LocationAddress    string          `json:"locationAddress,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	ChecklistID        string          `json:"checklistId,omitempty"`
	ChecklistResponses json.RawMessage `json:"checklistResponses,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type photoUpload struct {
	ClientID  string    `json:"clientId"`
	Base64    string    `json:"base64"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadOffer creates the offer on the backend as a private draft.
func (r *HTTPRemote) UploadOffer(ctx context.Context, offer offlinestore.PendingOffer) error {
	return r.post(ctx, "/api/v1/offers", offerUpload{
		ClientID:  offer.ID,
		Config:    offer.Config,
		CreatedAt: offer.CreatedAt,
		IsDraft:   true,
	})
}

// UploadCalculation appends the calculation to the user's history.
func (r *HTTPRemote) UploadCalculation(ctx context.Context, calc offlinestore.PendingCalculation) error {
	return r.post(ctx, "/api/v1/calculations", calculationUpload{
		ClientID:  calc.ID,
		Config:    calc.Config,
		Summary:   calc.Summary,
		CreatedAt: calc.CreatedAt,
	})
}

// UploadVisit creates the visit report.
func (r *HTTPRemote) UploadVisit(ctx context.Context, visit offlinestore.PendingVisit) error {
	return r.post(ctx, "/api/v1/visits", visitUpload{
		ClientID:           visit.ID,
		CustomerID:         visit.CustomerID,
		VisitDate:          visit.VisitDate,
		LocationLat:        visit.LocationLat,
		LocationLng:        visit.LocationLng,
		LocationAddress:    visit.LocationAddress,
		Notes:              visit.Notes,
		ChecklistID:        visit.ChecklistID,
		ChecklistResponses: visit.ChecklistResponses,
		CreatedAt:          visit.CreatedAt,
	})
}

// UploadPhoto attaches the photo to its visit report.
func (r *HTTPRemote) UploadPhoto(ctx context.Context, photo offlinestore.PendingPhoto) error {
	path := fmt.Sprintf("/api/v1/visits/%s/photos", photo.VisitID)
	return r.post(ctx, path, photoUpload{
		ClientID:  photo.ID,
		Base64:    photo.Base64,
		Caption:   photo.Caption,
		CreatedAt: photo.CreatedAt,
	})
}

// FetchHardwareCatalog pulls the tenant's active hardware price list.
func (r *HTTPRemote) FetchHardwareCatalog(ctx context.Context) ([]offlinestore.HardwareCatalogItem, error) {
	var items []offlinestore.HardwareCatalogItem
	if err := r.fetch(ctx, "/api/v1/catalog/hardware", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchTariffs pulls the active mobile tariffs.
func (r *HTTPRemote) FetchTariffs(ctx context.Context) ([]offlinestore.TariffItem, error) {
	var items []offlinestore.TariffItem
	if err := r.fetch(ctx, "/api/v1/catalog/tariffs", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchCustomers pulls the tenant's customer list.
func (r *HTTPRemote) FetchCustomers(ctx context.Context) ([]offlinestore.CachedCustomer, error) {
	var items []offlinestore.CachedCustomer
	if err := r.fetch(ctx, "/api/v1/customers", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchChecklists pulls the visit checklist templates.
func (r *HTTPRemote) FetchChecklists(ctx context.Context) ([]offlinestore.CachedChecklist, error) {
	var items []offlinestore.CachedChecklist
	if err := r.fetch(ctx, "/api/v1/checklists", &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *HTTPRemote) post(ctx context.Context, path string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if err := r.authorize(ctx, httpReq); err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, string(snippet))
	}
	return nil
}

func (r *HTTPRemote) fetch(ctx context.Context, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if err := r.authorize(ctx, httpReq); err != nil {
		return err
	}

	resp, err := r.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (r *HTTPRemote) authorize(ctx context.Context, req *http.Request) error {
	if r.Token == nil {
		return nil
	}
	token, err := r.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
