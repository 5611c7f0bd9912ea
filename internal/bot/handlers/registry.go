package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// Command patterns of the operator console.
const (
	HelpCommand      = "bf_help"
	DashboardCommand = "bf_dashboard"
	BacklogCommand   = "bf_backlog"
	RepublishCommand = "bf_republish"
)

// RegisteredHandler represents a command handler with its middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns every console command keyed by its slash
// command. All commands except help are restricted to the admin user.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/"+HelpCommand] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     HelpCommand,
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	handlers["/"+DashboardCommand] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     DashboardCommand,
		Handler:     NewDashboardHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/"+BacklogCommand] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     BacklogCommand,
		Handler:     NewBacklogHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/"+RepublishCommand] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     RepublishCommand,
		Handler:     NewRepublishHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}

	return handlers
}
