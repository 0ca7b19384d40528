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

package validate

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tierFailureCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/papertraildata/colstream/internal/validate")

	var err error

	tierFailureCounter, err = meter.Int64Counter(
		"colstream.validate.tier.failures",
		metric.WithDescription("Number of validation runs that failed, by tier"),
	)
	if err != nil {
		log.Fatalf("failed to create validate.tier.failures counter: %v", err)
	}
}

func recordTierFailure(ctx context.Context, tier int) {
	tierFailureCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("tier", tier),
	))
}
