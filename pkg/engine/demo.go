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

package engine

import (
	"context"

	"github.com/pingcap/errors"
)

// DemoSQL produces a small table with a NULL cell.
const DemoSQL = "SELECT * FROM (VALUES (3, 4), (5, 6), (7, NULL)) AS integers(i, j)"

// Demo runs DemoSQL on c.
func Demo(ctx context.Context, c *Connection) (*ResultBatch, error) {
	return c.Execute(ctx, DemoSQL)
}

// Version returns the engine version string.
func Version(ctx context.Context, c *Connection) (string, error) {
	batch, err := c.Execute(ctx, "SELECT version() AS version")
	if err != nil {
		return "", err
	}
	if batch.NumRows() != 1 || len(batch.Columns) != 1 {
		return "", errors.Errorf("unexpected version result: %d rows", batch.NumRows())
	}
	return batch.Rows[0][0].String(), nil
}
