// Package kafka publishes loaded temperature facts to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/climate-warehouse-etl/internal/config"
	"github.com/couchcryptid/climate-warehouse-etl/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces one message per fact to the fact topic.
// It implements pipeline.FactPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured fact topic.
// Messages are keyed by location and date so a fact always lands on the
// same partition.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaFactTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Publisher{writer: w, logger: logger}
}

// FactMessage is the JSON value of a published fact.
type FactMessage struct {
	RunID uuid.UUID `json:"run_id"`
	domain.FactRow
}

// PublishFacts serializes facts and writes them in a single WriteMessages
// call.
func (p *Publisher) PublishFacts(ctx context.Context, runID uuid.UUID, facts []domain.FactRow) error {
	if len(facts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(facts))
	for i := range facts {
		msg, err := serializeFact(runID, facts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write facts: %w", err)
	}
	p.logger.Debug("facts published", "topic", p.writer.Topic, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// FactKey is the message key of a fact: "<location_id>-<date_id>".
func FactKey(f domain.FactRow) []byte {
	return []byte(strconv.Itoa(f.LocationID) + "-" + strconv.Itoa(f.DateID))
}

// serializeFact marshals a fact into a Kafka message.
func serializeFact(runID uuid.UUID, fact domain.FactRow) (kafkago.Message, error) {
	data, err := json.Marshal(FactMessage{RunID: runID, FactRow: fact})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fact: %w", err)
	}
	return kafkago.Message{
		Key:   FactKey(fact),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID.String())},
			{Key: "source_file", Value: []byte(fact.SourceFile)},
		},
	}, nil
}
