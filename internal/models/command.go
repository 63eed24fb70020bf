package models

import (
	"breeze/internal/automations"
	"breeze/internal/queue"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CommandDispatcher persists a command row and hands it to the agent
// command stream. Dispatch is idempotent under the caller-supplied
// idempotency key: a key that was already dispatched returns the
// original command id without enqueueing again
type CommandDispatcher struct {
	Db    *sql.DB
	Queue queue.Instance
}

type commandEnvelope struct {
	CommandId string         `json:"commandId"`
	DeviceId  string         `json:"deviceId"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

func (d *CommandDispatcher) QueueCommandForExecution(ctx context.Context, opts automations.QueueCommandOpts) automations.QueueCommandResult {
	if opts.DeviceId == "" {
		return automations.QueueCommandResult{Error: "missing device id"}
	}

	if opts.IdempotencyKey != "" {
		commandId, err := d.getCommandIdByIdempotencyKey(opts.IdempotencyKey)
		if err == nil {
			return automations.QueueCommandResult{CommandId: commandId}
		}
		if !errors.Is(err, ErrorNotFound) {
			return automations.QueueCommandResult{Error: fmt.Sprintf("failed to check idempotency key: %s", err)}
		}
	}

	payloadJson, err := json.Marshal(opts.Payload)
	if err != nil {
		return automations.QueueCommandResult{Error: fmt.Sprintf("failed to marshal payload: %s", err)}
	}
	commandId := uuid.NewString()
	if err := executeMysqlInsert(mysqlQueryInput{
		Db: d.Db,
		Stmt: `
			INSERT INTO commands (id, device_id, type, payload, idempotency_key, created_by)
			VALUES (?, ?, ?, ?, ?, ?)`,
		Args: []any{
			commandId,
			opts.DeviceId,
			opts.CommandType,
			string(payloadJson),
			nullableString(opts.IdempotencyKey),
			opts.UserId,
		},
		RowsAffected: oneRowAffected,
		FnSource:     "models.CommandDispatcher.QueueCommandForExecution",
	}); err != nil {
		if errors.Is(err, ErrorDuplicateEntry) && opts.IdempotencyKey != "" {
			existingId, lookupErr := d.getCommandIdByIdempotencyKey(opts.IdempotencyKey)
			if lookupErr == nil {
				return automations.QueueCommandResult{CommandId: existingId}
			}
		}
		return automations.QueueCommandResult{Error: fmt.Sprintf("failed to insert command: %s", err)}
	}

	message, err := json.Marshal(commandEnvelope{
		CommandId: commandId,
		DeviceId:  opts.DeviceId,
		Type:      opts.CommandType,
		Payload:   opts.Payload,
	})
	if err != nil {
		return automations.QueueCommandResult{Error: fmt.Sprintf("failed to marshal command envelope: %s", err)}
	}
	if _, err := d.Queue.Push(queue.PushOpts{
		Data: message,
		Queue: queue.QueueOpts{
			Stream:  queue.StreamCommands,
			Subject: "dispatch",
		},
	}); err != nil {
		return automations.QueueCommandResult{Error: fmt.Sprintf("failed to enqueue command: %s", err)}
	}
	return automations.QueueCommandResult{CommandId: commandId}
}

func (d *CommandDispatcher) getCommandIdByIdempotencyKey(key string) (string, error) {
	var commandId string
	if err := executeMysqlSelect(mysqlQueryInput{
		Db: d.Db,
		Stmt: `
			SELECT id
			  FROM commands
			 WHERE idempotency_key = ?`,
		Args:     []any{key},
		FnSource: "models.CommandDispatcher.getCommandIdByIdempotencyKey",
		ProcessRow: func(row *sql.Row) error {
			return row.Scan(&commandId)
		},
	}); err != nil {
		return "", err
	}
	return commandId, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
