// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import (
	"encoding/json"
	"time"
)

// SyncStatus tracks the upload state of an outbox record.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSyncing SyncStatus = "syncing"
	StatusFailed  SyncStatus = "failed"
)

// Item is a value that can be stored in a collection. Key returns the
// primary key, unique within the collection.
type Item interface {
	Key() string
}

// HardwareCatalogItem is a cached entry of the hardware price list.
type HardwareCatalogItem struct {
	ID       string  `json:"id"`
	Brand    string  `json:"brand"`
	Model    string  `json:"model"`
	Category string  `json:"category"`
	EKNet    float64 `json:"ekNet"` // purchase price, net
}

func (h HardwareCatalogItem) Key() string { return h.ID }

// TariffItem is a cached mobile tariff.
type TariffItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Family       string  `json:"family"`
	MonthlyBase  float64 `json:"monthlyBase"`
	DataVolumeGB float64 `json:"dataVolumeGb"`
}

func (t TariffItem) Key() string { return t.ID }

// FixedNetProduct is a cached fixed-network product (DSL, cable, fiber).
type FixedNetProduct struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	MonthlyNet float64 `json:"monthlyNet"`
}

func (f FixedNetProduct) Key() string { return f.ID }

// ChecklistItem is a single question of a visit checklist.
type ChecklistItem struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Type     string `json:"type"` // e.g. "boolean", "text", "rating"
	Required bool   `json:"required"`
}

// CachedChecklist is a visit checklist template kept for offline visits.
type CachedChecklist struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Items []ChecklistItem `json:"items"`
}

func (c CachedChecklist) Key() string { return c.ID }

// CachedCustomer is a customer record kept for offline visit reports.
type CachedCustomer struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
}

func (c CachedCustomer) Key() string { return c.ID }

// PendingOffer is a locally created offer awaiting upload.
type PendingOffer struct {
	ID         string          `json:"id"`
	Config     json.RawMessage `json:"config"`
	CreatedAt  time.Time       `json:"createdAt"`
	SyncStatus SyncStatus      `json:"syncStatus"`
	RetryCount int             `json:"retryCount"`
}

func (p PendingOffer) Key() string { return p.ID }

// PendingCalculation is a locally created margin calculation awaiting upload.
type PendingCalculation struct {
	ID         string          `json:"id"`
	Config     json.RawMessage `json:"config"`
	Summary    string          `json:"summary"`
	CreatedAt  time.Time       `json:"createdAt"`
	SyncStatus SyncStatus      `json:"syncStatus"`
	RetryCount int             `json:"retryCount"`
}

func (p PendingCalculation) Key() string { return p.ID }

// PendingVisit is a locally created visit report awaiting upload.
type PendingVisit struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customerId"`
	VisitDate          time.Time       `json:"visitDate"`
	LocationLat        *float64        `json:"locationLat,omitempty"`
	LocationLng        *float64        `json:"locationLng,omitempty"`
	LocationAddress    string          `json:"locationAddress,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	ChecklistID        string          `json:"checklistId,omitempty"`
	ChecklistResponses json.RawMessage `json:"checklistResponses,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	SyncStatus         SyncStatus      `json:"syncStatus"`
	RetryCount         int             `json:"retryCount"`
}

func (p PendingVisit) Key() string { return p.ID }

// PendingPhoto is a visit photo captured offline, stored base64-encoded.
type PendingPhoto struct {
	ID        string    `json:"id"`
	VisitID   string    `json:"visitId"`
	Base64    string    `json:"base64"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p PendingPhoto) Key() string { return p.ID }

// SyncMetadata records when a reference cache was last refreshed. ID is
// the collection name; one row per collection.
type SyncMetadata struct {
	ID          string    `json:"id"`
	LastSyncAt  time.Time `json:"lastSyncAt"`
	DataVersion string    `json:"dataVersion"`
	ItemCount   int       `json:"itemCount"`
}

func (m SyncMetadata) Key() string { return m.ID }
