package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic       = "github-trending.snapshots"
	EventSnapshotAdded = "snapshot.created"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SnapshotEvent 新快照入库后发布的消息体
type SnapshotEvent struct {
	EventID             string        `json:"event_id"`
	Type                string        `json:"type"`
	SnapshotID          uint          `json:"snapshot_id"`
	FullName            string        `json:"full_name"`
	URL                 string        `json:"url"`
	Language            string        `json:"language"`
	Period              domain.Period `json:"period"`
	CollectionDate      string        `json:"collection_date"`
	Stars               int           `json:"stars"`
	CurrentPeriodStars  int           `json:"current_period_stars"`
	Title               string        `json:"title"`
	RecommendationScore int           `json:"recommendation_score"`
	Fallback            bool          `json:"fallback"`
	OccurredAt          time.Time     `json:"occurred_at"`
}

// Publisher 实现了 port.EventPublisher 接口
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher 创建 Kafka 生产者
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, common.NewError(common.ErrCodeInvalidInput, "no kafka brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newPublisher(writer, logger), nil
}

func newPublisher(w messageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

// EventKey 同一个快照键的消息落在同一个分区
func EventKey(s *domain.Snapshot) string {
	return s.CollectionDate.Format(time.DateOnly) + "/" + s.FullName + "/" + string(s.Period)
}

// PublishCreated 发布 snapshot.created 事件
func (p *Publisher) PublishCreated(ctx context.Context, s *domain.Snapshot) error {
	analysis := s.Analysis()
	event := SnapshotEvent{
		EventID:             uuid.NewString(),
		Type:                EventSnapshotAdded,
		SnapshotID:          s.ID,
		FullName:            s.FullName,
		URL:                 s.URL,
		Language:            s.Language,
		Period:              s.Period,
		CollectionDate:      s.CollectionDate.Format(time.DateOnly),
		Stars:               s.Stars,
		CurrentPeriodStars:  s.CurrentPeriodStars,
		Title:               analysis.Title,
		RecommendationScore: analysis.RecommendationScore,
		Fallback:            analysis.IsFallback(),
		OccurredAt:          p.now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return common.WrapError(common.ErrCodeInternal, "failed to marshal event", err)
	}

	msg := kafka.Message{
		Key:   []byte(EventKey(s)),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventSnapshotAdded)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return common.WrapError(common.ErrCodeInternal, "failed to write message to kafka", err)
	}

	p.logger.Debug("snapshot event published", "repo", s.FullName, "period", s.Period, "event_id", event.EventID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
