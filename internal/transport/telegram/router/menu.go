package router

import (
	"context"
	"time"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// MenuCommands is the platform command menu: canonical names only.
func MenuCommands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(specs))
	for _, s := range specs {
		out = append(out, kit.BotCommand{Command: s.Name, Description: s.Description})
	}
	return out
}

// PublishMenu pushes MenuCommands when the adapter supports it. Failures
// are logged only.
func PublishMenu(ctx context.Context, adapter any, log logx.Logger) {
	up, ok := adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(ctx, MenuCommands()); err != nil {
		log.Warn("menu update failed", logx.Err(err))
	}
}
