// Copyright (C) 2025 CardinalHQ, Inc
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
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"

	"github.com/cardinalhq/filestat/internal/helpers"
	"github.com/cardinalhq/filestat/internal/logctx"
)

var tracer = otel.Tracer("github.com/cardinalhq/filestat")

// setupTelemetry configures slog and, when enabled, the OpenTelemetry SDK.
// Logs go to logOut so stdout stays free for results. The returned context
// carries a logger tagged with this run's ID and is cancelled on SIGINT or
// SIGTERM.
func setupTelemetry(logOut io.Writer, verbose bool) (context.Context, func() error, error) {
	runID := uuid.NewString()

	doneCtx, doneCancel := handleSignals(context.Background())

	shutdown := func() error {
		doneCancel()
		return nil
	}

	level := slog.LevelInfo
	if verbose || helpers.GetBoolEnv("FILESTAT_DEBUG", false) {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && helpers.GetBoolEnv("ENABLE_OTLP_TELEMETRY", false) {
		slog.SetDefault(slog.New(slogmulti.Fanout(
			slog.NewTextHandler(logOut, opts),
			otelslog.NewHandler(serviceName),
		)).With(
			slog.String("service", serviceName),
		))
		slog.Info("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			slog.Warn("failed to start runtime metrics", "error", err.Error())
		}

		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", "error", err.Error())
		}

		shutdown = func() error {
			defer doneCancel()
			slog.Debug("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(logOut, opts)).With(
			slog.String("service", serviceName),
		))
	}

	ctx := logctx.With(doneCtx, slog.String("runID", runID))
	return ctx, shutdown, nil
}

// withTelemetry wraps a command body with telemetry setup and shutdown.
func withTelemetry(verbose bool, errOut io.Writer, fn func(ctx context.Context) error) error {
	ctx, shutdown, err := setupTelemetry(errOut, verbose)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
