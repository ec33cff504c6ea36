// Package api содержит типы HTTP API, общие для сервера и клиента
package api

import "time"

// Пути HTTP API
const (
	PathHealth         = "/api/v1/health"
	PathCommands       = "/api/v1/commands"
	PathSnapshots      = "/api/v1/snapshots"
	PathSnapshotStream = "/api/v1/snapshots/ws"
	PathRecords        = "/api/v1/records"
	PathMetrics        = "/metrics"
)

// HeaderNodeID идентифицирует узел-отправитель команды
const HeaderNodeID = "X-Node-ID"

// Роли узлов
const (
	RoleAuthoritative = "authoritative"
	RoleReplica       = "replica"
)

// HealthResponse представляет ответ health check, используется для обнаружения пира
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	NodeID  string `json:"node_id"`
	Role    string `json:"role"`
}

// CommandResponse подтверждает приём команды
type CommandResponse struct {
	Action   string `json:"action"`
	RecordID string `json:"record_id"`
}

// CommandLogEntry одна запись журнала команд
type CommandLogEntry struct {
	ReceivedAt time.Time `json:"received_at"`
	Path       string    `json:"path"`
	RecordID   string    `json:"record_id"`
	From       string    `json:"from"`
	ID         int64     `json:"id"`
}

// UpdateStatusRequest запрос на смену статуса записи
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
