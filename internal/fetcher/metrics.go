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

package fetcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	fetchRecords  metric.Int64Counter
	fetchDuration metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/filestat/internal/fetcher")

	var err error
	fetchRecords, err = meter.Int64Counter(
		"filestat.fetch.records",
		metric.WithDescription("Number of metadata records produced, by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch.records counter: %w", err))
	}

	fetchDuration, err = meter.Float64Histogram(
		"filestat.fetch.duration",
		metric.WithDescription("Time spent fetching metadata for one file"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch.duration histogram: %w", err))
	}
}

func recordOutcome(ctx context.Context, rec Record) {
	outcome := "ok"
	if rec.Failed() {
		outcome = string(rec.ErrorKind)
	}
	fetchRecords.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
