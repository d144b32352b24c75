package scanner

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds scan pipeline metrics using OTEL semantic conventions
type Metrics struct {
	foldersScanned metric.Int64Counter
	acesDecoded    metric.Int64Counter
	scanErrors     metric.Int64Counter
	scanDuration   metric.Float64Histogram
}

// NewMetrics creates scanner metrics from the global meter provider
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("aclscan.scanner")

	foldersScanned, err := meter.Int64Counter(
		"aclscan.scanner.folders",
		metric.WithDescription("Number of folders scanned for permissions"),
		metric.WithUnit("{folder}"),
	)
	if err != nil {
		return nil, err
	}

	acesDecoded, err := meter.Int64Counter(
		"aclscan.scanner.aces",
		metric.WithDescription("Number of access-control entries decoded"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	scanErrors, err := meter.Int64Counter(
		"aclscan.scanner.errors",
		metric.WithDescription("Number of per-folder enumeration failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	scanDuration, err := meter.Float64Histogram(
		"aclscan.scanner.duration",
		metric.WithDescription("Duration of full tree scans"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		foldersScanned: foldersScanned,
		acesDecoded:    acesDecoded,
		scanErrors:     scanErrors,
		scanDuration:   scanDuration,
	}, nil
}

func (m *Metrics) recordFolder(ctx context.Context, provider string, aces int) {
	attrs := metric.WithAttributes(attribute.String("acl.provider", provider))
	m.foldersScanned.Add(ctx, 1, attrs)
	m.acesDecoded.Add(ctx, int64(aces), attrs)
}

func (m *Metrics) recordError(ctx context.Context, provider string) {
	m.scanErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("acl.provider", provider)))
}

func (m *Metrics) recordDuration(ctx context.Context, seconds float64) {
	m.scanDuration.Record(ctx, seconds)
}
