// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package errutil bridges oops errors to logging and to user-facing text.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. Oops errors contribute their code and
// context as structured attributes; other errors are logged as strings.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, attrs(err)...)
}

// LogWarn is LogError at warning level, for failures the caller tolerates.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.WarnContext(ctx, msg, attrs(err)...)
}

func attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	out := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		out = append(out, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		out = append(out, "context", ctx)
	}
	return out
}

// PublicMessage returns the public message attached to err with
// oops.Public, or fallback when none was set.
func PublicMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	return oops.GetPublic(err, fallback)
}

// Code returns the oops code of err, or "" for non-oops errors.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return ""
	}
	return code
}
