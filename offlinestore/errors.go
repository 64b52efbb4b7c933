// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import "errors"

var (
	// ErrStorageUnavailable indicates the backing database could not be
	// opened or initialized. Offline capability is lost entirely.
	ErrStorageUnavailable = errors.New("offline storage unavailable")

	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNotFound is returned by Get when no item exists under the key.
	ErrNotFound = errors.New("item not found")

	// ErrUnknownCollection is returned when a collection name is not part
	// of the registered schema.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrUnknownIndex is returned when an index name is not declared for
	// the collection.
	ErrUnknownIndex = errors.New("unknown index")
)
