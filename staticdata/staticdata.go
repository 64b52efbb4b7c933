// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

// Package staticdata bundles the build-time hardware and tariff catalog
// used to prime the offline caches before any successful network refresh
// has occurred (first run after install, no connectivity).
package staticdata

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
)

// Version identifies the bundled dataset release.
const Version = "v2025_10"

//go:embed hardware.json
var hardwareJSON []byte

//go:embed tariffs.json
var tariffsJSON []byte

// HardwareCatalog returns the bundled hardware price list.
func HardwareCatalog() ([]offlinestore.HardwareCatalogItem, error) {
	var items []offlinestore.HardwareCatalogItem
	if err := json.Unmarshal(hardwareJSON, &items); err != nil {
		return nil, fmt.Errorf("failed to decode bundled hardware catalog: %w", err)
	}
	return items, nil
}

// Tariffs returns the bundled mobile tariff list.
func Tariffs() ([]offlinestore.TariffItem, error) {
	var items []offlinestore.TariffItem
	if err := json.Unmarshal(tariffsJSON, &items); err != nil {
		return nil, fmt.Errorf("failed to decode bundled tariffs: %w", err)
	}
	return items, nil
}
