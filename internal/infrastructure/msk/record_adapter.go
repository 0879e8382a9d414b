package msk

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sort"

	"github.com/aws/aws-lambda-go/events"
	"github.com/weddify/binks/internal/infrastructure/kafka"
)

// Record is a Kafka record delivered by a Lambda event source mapping, with
// key and value decoded from base64.
type Record struct {
	Topic     string
	Partition int64
	Offset    int64
	Key       []byte
	Value     []byte
}

// ConvertFromKafkaRecord decodes the base64 key and value of a Lambda Kafka record.
func ConvertFromKafkaRecord(record events.KafkaRecord) (Record, error) {
	key, err := base64.StdEncoding.DecodeString(record.Key)
	if err != nil {
		return Record{}, fmt.Errorf("decode key of %s@%d: %w", record.Topic, record.Offset, err)
	}
	value, err := base64.StdEncoding.DecodeString(record.Value)
	if err != nil {
		return Record{}, fmt.Errorf("decode value of %s@%d: %w", record.Topic, record.Offset, err)
	}
	if len(value) == 0 {
		return Record{}, fmt.Errorf("empty value in %s@%d", record.Topic, record.Offset)
	}
	return Record{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       key,
		Value:     value,
	}, nil
}

// Records flattens the topic-partition batches of an event, ordered by
// partition key and then offset.
func Records(event events.KafkaEvent) []events.KafkaRecord {
	keys := make([]string, 0, len(event.Records))
	for k := range event.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []events.KafkaRecord
	for _, k := range keys {
		batch := append([]events.KafkaRecord(nil), event.Records[k]...)
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].Offset < batch[j].Offset })
		out = append(out, batch...)
	}
	return out
}

// Dispatch hands every record of event to handler, the same contract the
// long-running consumer uses. Failed records are logged and counted but do
// not stop the batch.
func Dispatch(ctx context.Context, event events.KafkaEvent, handler kafka.MessageHandler) (processed, failed int) {
	for _, raw := range Records(event) {
		record, err := ConvertFromKafkaRecord(raw)
		if err != nil {
			log.Printf("[MSK] Skipping record: %v", err)
			failed++
			continue
		}
		if err := handler(ctx, record.Key, record.Value); err != nil {
			log.Printf("[MSK] Error handling %s@%d: %v", record.Topic, record.Offset, err)
			failed++
			continue
		}
		processed++
	}
	return processed, failed
}
