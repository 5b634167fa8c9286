// Package logx centralizes logger annotation for session-scoped work.
package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/schema"
)

type contextKey int

const (
	sessionKey contextKey = iota
	pluginKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the logger with the session id if present.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithSessionPlugin annotates the logger with session and plugin identifiers.
func WithSessionPlugin(ctx context.Context, sessionID schema.SessionID, pluginID schema.PluginID) pslog.Logger {
	log := WithSession(ctx, sessionID)
	if pluginID != "" {
		if current, ok := ctx.Value(pluginKey).(schema.PluginID); ok && current == pluginID {
			return log
		}
		log = log.With("plugin", pluginID)
	}
	return log
}

// WithSubscriber annotates the logger with a subscriber id when available.
func WithSubscriber(log pslog.Logger, subscriberID schema.SubscriberID) pslog.Logger {
	if subscriberID != "" {
		log = log.With("subscriber", subscriberID)
	}
	return log
}

// ContextWithSession stores the session marker on the context for log
// de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithPlugin stores the plugin marker on the context for log
// de-duplication.
func ContextWithPlugin(ctx context.Context, pluginID schema.PluginID) context.Context {
	if ctx == nil || pluginID == "" {
		return ctx
	}
	return context.WithValue(ctx, pluginKey, pluginID)
}

// ContextWithSessionLogger attaches the logger and session marker to the
// context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}
