package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/greatsami/g-drive-clone/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ShareNotification is published after files are shared with a recipient.
type ShareNotification struct {
	OwnerID        uint      `json:"owner_id"`
	OwnerName      string    `json:"owner_name"`
	RecipientID    uint      `json:"recipient_id"`
	RecipientEmail string    `json:"recipient_email"`
	FileIDs        []uint    `json:"file_ids"`
	FileNames      []string  `json:"file_names"`
	SharedAt       time.Time `json:"shared_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaShareNotifier struct {
	writer messageWriter
}

func NewKafkaShareNotifier(brokers []string, topic string) *KafkaShareNotifier {
	return &KafkaShareNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
	}
}

func (n *KafkaShareNotifier) NotifyShared(ctx context.Context, event ShareNotification) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.RecipientID), 10)),
		Value: value,
		Time:  event.SharedAt,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	logger.L().Info("share notification published",
		zap.Uint("recipient_id", event.RecipientID),
		zap.Int("files", len(event.FileIDs)))
	return nil
}

func (n *KafkaShareNotifier) Close() error {
	return n.writer.Close()
}

// LogShareNotifier only logs; used when no broker is configured.
type LogShareNotifier struct{}

func (LogShareNotifier) NotifyShared(_ context.Context, event ShareNotification) error {
	logger.L().Info("files shared",
		zap.Uint("owner_id", event.OwnerID),
		zap.Uint("recipient_id", event.RecipientID),
		zap.String("recipient_email", event.RecipientEmail),
		zap.Strings("files", event.FileNames))
	return nil
}

func (LogShareNotifier) Close() error {
	return nil
}
