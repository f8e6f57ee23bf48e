package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
)

// KafkaRatePublisher 把利率报价发布到 Kafka, 消息键为流 ID,
// 保证同一条流的报价落在同一分区并保持顺序.
type KafkaRatePublisher struct {
	producer *kafka.Producer
}

func NewKafkaRatePublisher(producer *kafka.Producer) domain.RatePublisher {
	return &KafkaRatePublisher{producer: producer}
}

func (p *KafkaRatePublisher) PublishRate(ctx context.Context, tick domain.RateTick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("marshal rate tick: %w", err)
	}
	return p.producer.Publish(ctx, []byte(tick.StreamID), data)
}
