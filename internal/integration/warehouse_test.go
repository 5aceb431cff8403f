//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/postgres"
	"github.com/couchcryptid/climate-warehouse-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climate-warehouse-etl/internal/config"
	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/couchcryptid/climate-warehouse-etl/internal/observability"
	"github.com/couchcryptid/climate-warehouse-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCounts(ctx context.Context, t *testing.T, l *postgres.Loader, dates, locations, facts int64) {
	t.Helper()
	for table, want := range map[string]int64{
		postgres.TableDate:     dates,
		postgres.TableLocation: locations,
		postgres.TableFact:     facts,
	} {
		n, err := l.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}
}

// TestPostgresLoader runs the pipeline over the mock CSVs into a real
// Postgres, then reruns it in append and replace mode.
func TestPostgresLoader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := startPostgres(ctx, t)
	loader, err := postgres.Connect(ctx, dsn, "climate", discardLogger())
	require.NoError(t, err)
	t.Cleanup(loader.Close)
	require.NoError(t, loader.CheckReadiness(ctx))

	opts := pipeline.DefaultOptions()
	opts.BatchSize = 40
	run := func(mode domain.LoadMode) pipeline.RunReport {
		opts.Mode = mode
		p := pipeline.New(mockExtractor(), loader, discardLogger(), observability.NewMetricsForTesting(), opts)
		report, err := p.Run(ctx)
		require.NoError(t, err)
		require.NoError(t, p.CheckReadiness(ctx))
		return report
	}

	report := run(domain.LoadAppend)
	assert.True(t, report.Complete())
	assert.Equal(t, mockFacts, report.FactsLoaded)
	assertCounts(ctx, t, loader, mockDates, mockLocations, mockFacts)

	run(domain.LoadAppend)
	assertCounts(ctx, t, loader, mockDates, mockLocations, 2*mockFacts)

	run(domain.LoadReplace)
	assertCounts(ctx, t, loader, mockDates, mockLocations, mockFacts)

	keys, err := loader.StoredKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys.Dates, mockDates)
	assert.Len(t, keys.Locations, mockLocations)
	assert.Equal(t, 1, keys.Locations[domain.LocationKey{Granularity: domain.GranularityGlobal}])

	// A run over fewer sources builds different dense ids; it must reuse
	// the stored ones.
	opts.Sources = []domain.Source{domain.SourceGlobal, domain.SourceMajorCity}
	run(domain.LoadAppend)
	assertCounts(ctx, t, loader, mockDates, mockLocations, mockFacts+12+24)
	again, err := loader.StoredKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, keys, again)
}

// TestFactPublishing loads the mock CSVs into SQLite and checks that every
// loaded fact is published to Kafka with the run id.
func TestFactPublishing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const topic = "test-climate-facts"
	broker := startKafka(ctx, t)
	createTopic(t, broker, topic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaFactTopic:     topic,
		BatchSize:          50,
		BatchFlushInterval: 100 * time.Millisecond,
	}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	wh, err := sqlite.Open(":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = wh.Close() })

	opts := pipeline.DefaultOptions()
	opts.Sources = []domain.Source{domain.SourceGlobal, domain.SourceMajorCity}
	p := pipeline.New(mockExtractor(), wh, discardLogger(), observability.NewMetricsForTesting(), opts).
		WithPublisher(publisher)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, report.PublishFailures)
	want := 12 + 24
	require.Equal(t, want, report.FactsLoaded)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	bySource := make(map[string]int)
	for range want {
		readCtx, cancelRead := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		cancelRead()
		require.NoError(t, err, "read from fact topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, report.RunID.String(), headers["run_id"])

		var fact kafka.FactMessage
		require.NoError(t, json.Unmarshal(msg.Value, &fact))
		assert.Equal(t, report.RunID, fact.RunID)
		assert.Equal(t, string(kafka.FactKey(fact.FactRow)), string(msg.Key))
		bySource[fact.SourceFile]++
	}
	assert.Equal(t, map[string]int{"global": 12, "major_city": 24}, bySource)
}
