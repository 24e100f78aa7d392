package logger

import (
	"context"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// SettlementInfo identifies a settlement attempt in logs and sentry events
type SettlementInfo struct {
	Network string
	Signer  string
	OrderID string
	Path    string // "split", "fallback" or "batch"
}

// Fields returns the zap fields describing the settlement
func (i SettlementInfo) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("network", i.Network),
		zap.String("signer", i.Signer),
	}
	if i.OrderID != "" {
		fields = append(fields, zap.String("order_id", i.OrderID))
	}
	if i.Path != "" {
		fields = append(fields, zap.String("settlement_path", i.Path))
	}
	return fields
}

// WithSettlement returns a context carrying a sentry hub scoped to the settlement,
// so errors logged through the *Ctx helpers are grouped per signer and network.
func WithSettlement(ctx context.Context, info SettlementInfo) context.Context {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		if sentryClient == nil {
			return ctx
		}
		hub = sentry.NewHub(sentryClient, sentry.NewScope())
	} else {
		hub = hub.Clone()
	}

	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("network", info.Network)
		scope.SetTag("settlement_path", info.Path)
		scope.SetContext("settlement", sentry.Context{
			"signer":   info.Signer,
			"order_id": info.OrderID,
		})
	})

	return sentry.SetHubOnContext(ctx, hub)
}

// InfoSettlement logs an info message tagged with the settlement fields
func InfoSettlement(ctx context.Context, info SettlementInfo, msg string, fields ...zap.Field) {
	FromContext(ctx).Info(msg, append(info.Fields(), fields...)...)
}

// WarnSettlement logs a warning tagged with the settlement fields
func WarnSettlement(ctx context.Context, info SettlementInfo, msg string, fields ...zap.Field) {
	FromContext(ctx).Warn(msg, append(info.Fields(), fields...)...)
}

// ErrorSettlement logs an error tagged with the settlement fields
func ErrorSettlement(ctx context.Context, info SettlementInfo, err error, fields ...zap.Field) {
	ErrorCtx(ctx, err, append(info.Fields(), fields...)...)
}
