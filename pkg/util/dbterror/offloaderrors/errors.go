// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package offloaderrors

import (
	"github.com/pingcap/errors"
)

// error definitions.
var (
	// ErrEngineConfig is returned when the embedded engine rejects a configuration option.
	ErrEngineConfig = errors.Normalize("embedded engine rejected config option %s: %s", errors.RFCCodeText("plansplit:engine:config"))
	// ErrEngineOpen is returned when the embedded engine instance cannot be opened.
	ErrEngineOpen = errors.Normalize("failed to open embedded engine %s: %s", errors.RFCCodeText("plansplit:engine:open"))
	// ErrPrepare is returned when a statement cannot be compiled by the engine.
	ErrPrepare = errors.Normalize("failed to prepare statement: %s", errors.RFCCodeText("plansplit:engine:prepare"))
	// ErrExecute is returned when a prepared statement fails while running.
	ErrExecute = errors.Normalize("failed to execute statement: %s", errors.RFCCodeText("plansplit:engine:execute"))
	// ErrEngineClosed is returned by a connection after Shutdown.
	ErrEngineClosed = errors.Normalize("embedded engine is shut down", errors.RFCCodeText("plansplit:engine:closed"))
	// ErrDeparseFailure is returned when the host cannot regenerate SQL text for a query.
	ErrDeparseFailure = errors.Normalize("host could not deparse query: %s", errors.RFCCodeText("plansplit:host:deparse"))
	// ErrMalformedHostStructure reports a CTE list whose shape breaks the host's invariants.
	ErrMalformedHostStructure = errors.Normalize("malformed host structure: %s", errors.RFCCodeText("plansplit:host:malformed"))
	// ErrBadInit is returned when plansplit is loaded outside the primary server process.
	ErrBadInit = errors.Normalize("plansplit: failed to init plugin: %s", errors.RFCCodeText("plansplit:init:bad-init"))
)

// IsEngineInitErr reports whether err is one of the permanent engine initialization failures.
func IsEngineInitErr(err error) bool {
	return ErrEngineConfig.Equal(err) || ErrEngineOpen.Equal(err)
}
