package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka-backed change feed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// KafkaFeed publishes change events to a Kafka topic keyed by user id and
// serves per-user subscriptions from it. The workflow engine may produce to
// the same topic directly.
type KafkaFeed struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
	logger  *slog.Logger
}

// NewKafkaFeed creates a feed. No connection is made until first use.
func NewKafkaFeed(cfg KafkaConfig) (*KafkaFeed, error) {
	var brokers []string
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka feed: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka feed: topic is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &KafkaFeed{
		brokers: brokers,
		topic:   cfg.Topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		logger: logger,
	}, nil
}

// Publish writes e to the topic.
func (f *KafkaFeed) Publish(ctx context.Context, e Event) error {
	msg, err := encodeMessage(e)
	if err != nil {
		return err
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s event: %w", e.Type, err)
	}
	return nil
}

// Subscribe opens one reader per partition, each pinned to that partition's
// current end offset before it returns, and streams the events of userID until
// ctx is done or any reader fails. Events written after Subscribe returns are
// always delivered.
func (f *KafkaFeed) Subscribe(ctx context.Context, userID string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offsets, err := f.lastOffsets(ctx)
	if err != nil {
		return nil, err
	}

	readers := make([]*kafka.Reader, 0, len(offsets))
	for partition, offset := range offsets {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   f.brokers,
			Topic:     f.topic,
			Partition: partition,
			MinBytes:  1,
			MaxBytes:  10e6,
			MaxWait:   500 * time.Millisecond,
		})
		if err := reader.SetOffset(offset); err != nil {
			_ = reader.Close()
			closeReaders(readers)
			return nil, fmt.Errorf("seeking partition %d of %s: %w", partition, f.topic, err)
		}
		readers = append(readers, reader)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, defaultHubBuffer)
	var wg sync.WaitGroup
	for _, reader := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			// One failed partition ends the subscription so the caller resubscribes.
			defer cancel()
			f.pump(ctx, reader, userID, out)
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (f *KafkaFeed) pump(ctx context.Context, reader *kafka.Reader, userID string, out chan<- Event) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("kafka feed read error", "topic", f.topic, "partition", reader.Config().Partition, "user_id", userID, "error", err)
			}
			return
		}
		e, ok := decodeMessage(msg, userID)
		if !ok {
			continue
		}
		select {
		case out <- e:
		case <-ctx.Done():
			return
		}
	}
}

// lastOffsets returns the end offset of every partition of the topic.
func (f *KafkaFeed) lastOffsets(ctx context.Context) (map[int]int64, error) {
	var (
		conn *kafka.Conn
		addr string
		err  error
	)
	for _, addr = range f.brokers {
		if conn, err = kafka.DialContext(ctx, "tcp", addr); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dialing kafka: %w", err)
	}
	defer conn.Close()

	parts, err := conn.ReadPartitions(f.topic)
	if err != nil {
		return nil, fmt.Errorf("reading partitions of %s: %w", f.topic, err)
	}
	offsets := make(map[int]int64, len(parts))
	for _, p := range parts {
		if p.Topic != f.topic {
			continue
		}
		leader, err := kafka.DialLeader(ctx, "tcp", addr, f.topic, p.ID)
		if err != nil {
			return nil, fmt.Errorf("dialing leader of partition %d: %w", p.ID, err)
		}
		last, err := leader.ReadLastOffset()
		_ = leader.Close()
		if err != nil {
			return nil, fmt.Errorf("reading end offset of partition %d: %w", p.ID, err)
		}
		offsets[p.ID] = last
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("topic %s has no partitions", f.topic)
	}
	return offsets, nil
}

func closeReaders(readers []*kafka.Reader) {
	for _, r := range readers {
		_ = r.Close()
	}
}

// Close flushes and closes the writer.
func (f *KafkaFeed) Close() error {
	return f.writer.Close()
}

func encodeMessage(e Event) (kafka.Message, error) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s event: %w", e.Type, err)
	}
	return kafka.Message{Key: []byte(e.Row.UserID), Value: value, Time: e.At}, nil
}

// decodeMessage reports false for malformed messages and other users' rows.
func decodeMessage(msg kafka.Message, userID string) (Event, bool) {
	if len(msg.Key) > 0 && string(msg.Key) != userID {
		return Event{}, false
	}
	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return Event{}, false
	}
	if e.Row.UserID != userID || e.Row.ID == "" {
		return Event{}, false
	}
	if e.Type != EventInsert && e.Type != EventUpdate {
		return Event{}, false
	}
	return e, true
}
