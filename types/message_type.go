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

type MessageType string

const (
	LogMessage              MessageType = "LOG"
	ConnectionStatusMessage MessageType = "CONNECTION_STATUS"
	CursorMessage           MessageType = "CURSOR"
	ProjectionMessage       MessageType = "PROJECTION"
	SpecMessage             MessageType = "SPEC"
)

type ConnectionStatus string

const (
	ConnectionSucceed ConnectionStatus = "SUCCEEDED"
	ConnectionFailed  ConnectionStatus = "FAILED"
)

// Message is the envelope the CLI prints for every result
type Message struct {
	Type             MessageType `json:"type"`
	ConnectionStatus *StatusRow  `json:"connectionStatus,omitempty"`
	Stream           string      `json:"stream,omitempty"`
	Cursor           any         `json:"cursor,omitempty"`
	Projections      any         `json:"projections,omitempty"`
	Spec             any         `json:"spec,omitempty"`
}

type StatusRow struct {
	Status  ConnectionStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}
