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

package host

// Deparser regenerates SQL text from an analyzed query.
type Deparser interface {
	// Deparse returns the SQL text of q. pretty only changes formatting.
	Deparse(q *Query, pretty bool) (string, error)
}

// Dialect is a SQL front end of the host: it parses and analyzes statements
// and turns analyzed queries back into SQL text.
type Dialect interface {
	Deparser
	// Name returns the dialect name.
	Name() string
	// Parse parses sql into analyzed top-level queries.
	Parse(sql string) ([]*Query, error)
}
