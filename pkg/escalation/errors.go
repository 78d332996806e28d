// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package escalation

import (
	"errors"

	"github.com/telekom/frontdesk/pkg/store"
)

var (
	// ErrInvalidState is returned when a transition targets an escalation that is no longer pending.
	ErrInvalidState = errors.New("escalation already handled")
	// ErrInvalidInput is returned for empty questions, answers or operator names.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for unknown escalation or knowledge ids.
	ErrNotFound = store.ErrNotFound
	// ErrStoreUnavailable is returned when the backend failed transiently.
	ErrStoreUnavailable = store.ErrUnavailable
)
