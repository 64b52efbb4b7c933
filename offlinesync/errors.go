// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinesync

import "errors"

var (
	// ErrSyncInProgress is returned when a sync trigger arrives while a
	// cycle is already running. The trigger is rejected, never queued;
	// callers retry after the in-flight cycle completes.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is returned by TriggerSync while the device is offline.
	ErrOffline = errors.New("device is offline")
)
