// Copyright (C) 2025 Paper Trail Data, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	slogmulti "github.com/samber/slog-multi"

	"github.com/papertraildata/colstream/internal/logctx"
)

// setupRun configures the default logger, a context carrying it, and
// signal-driven cancellation. Every handler goes through this so long runs
// die cleanly on SIGTERM between batches. Returned cleanup closes the log
// file when one was requested.
func setupRun(logFile string) (context.Context, context.CancelFunc, func(), error) {
	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("COLSTREAM_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	cleanup := func() {}
	handler := slog.Handler(slog.NewTextHandler(os.Stdout, opts))
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler = slogmulti.Fanout(
			handler,
			slog.NewJSONHandler(f, opts),
		)
		cleanup = func() { _ = f.Close() }
	}

	ll := slog.New(handler).With(slog.String("service", "colstream"))
	slog.SetDefault(ll)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return logctx.WithLogger(ctx, ll), cancel, cleanup, nil
}
