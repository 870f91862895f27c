/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import "context"

// Stream is an ordered, cursor addressable source of data.
type Stream[D, C any] interface {
	// ID identifies the stream; projections fed by it are stored under this id
	ID() string
	// NewCursor returns the position before the first element
	NewCursor() *Cursor[C]
	// Fetch returns the next batch after query.Cursor, at most query.BatchSize
	// items, and advances query.Cursor past everything the fetch covered even
	// when no items are returned.
	Fetch(ctx context.Context, query *Query[C]) (Batch[D, C], error)
}
