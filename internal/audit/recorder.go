package audit

import (
	"context"

	"github.com/nerrad567/gray-logic-slobs/internal/bridges/slobs"
)

// Entity types recorded for bridge commands.
const (
	EntityScene  = "scene"
	EntitySource = "source"
)

// Command sources.
const (
	SourceMQTT = "mqtt" // recorded when a command carries no source of its own
	SourceAPI  = "api"
)

// CommandRecorder writes one entry per bridge command.
// It satisfies slobs.AuditRecorder.
type CommandRecorder struct {
	repo Repository
}

// NewCommandRecorder creates a recorder over repo.
func NewCommandRecorder(repo Repository) *CommandRecorder {
	return &CommandRecorder{repo: repo}
}

// RecordCommand stores cmd and its outcome. target is the topic target,
// used as the entity id.
func (r *CommandRecorder) RecordCommand(ctx context.Context, cmd slobs.CommandMessage, target string, ack slobs.AckMessage) error {
	details := map[string]any{
		"command_id": cmd.ID,
		"status":     string(ack.Status),
	}
	if len(cmd.Parameters) > 0 {
		details["parameters"] = cmd.Parameters
	}
	if len(ack.Result) > 0 {
		details["result"] = ack.Result
	}
	if ack.Error != nil {
		details["error_code"] = ack.Error.Code
		details["error"] = ack.Error.Message
	}

	source := cmd.Source
	if source == "" {
		source = SourceMQTT
	}

	return r.repo.Create(ctx, &Entry{
		Action:     cmd.Command,
		EntityType: entityFor(cmd.Command),
		EntityID:   target,
		UserID:     cmd.UserID,
		Source:     source,
		Details:    details,
	})
}

func entityFor(command string) string {
	if command == slobs.CommandSwitchScene {
		return EntityScene
	}
	return EntitySource
}
