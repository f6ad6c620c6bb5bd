package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/config"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/banking/regional-compliance/internal/service"
	"go.uber.org/zap"
)

// TenantHeader carries the tenant when the payload does not
const TenantHeader = "tenant-id"

// TransactionStore persists transactions durably
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
}

// TransactionRecorder feeds a transaction into monitoring history
type TransactionRecorder interface {
	RecordTransaction(ctx context.Context, t service.Target, tx domain.Transaction) error
}

// TransactionEvent is the message on the transaction topic
type TransactionEvent struct {
	TenantID    string             `json:"tenant_id"`
	Transaction domain.Transaction `json:"transaction"`
}

// TransactionConsumer feeds the core banking transaction stream into
// monitoring history
type TransactionConsumer struct {
	consumerGroup sarama.ConsumerGroup
	handler       *transactionHandler
	topics        []string
	logger        *zap.Logger
}

func NewTransactionConsumer(cfg config.KafkaConfig, store TransactionStore, recorder TransactionRecorder, logger *zap.Logger) (*TransactionConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_8_0_0

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &TransactionConsumer{
		consumerGroup: consumerGroup,
		handler:       newTransactionHandler(store, recorder, cfg.MaxRetries, logger),
		topics:        []string{cfg.TransactionTopic},
		logger:        logger,
	}, nil
}

func (c *TransactionConsumer) Start(ctx context.Context) error {
	for {
		if err := c.consumerGroup.Consume(ctx, c.topics, c.handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Error from consumer", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *TransactionConsumer) Close() error {
	return c.consumerGroup.Close()
}

type transactionHandler struct {
	store      TransactionStore // optional
	recorder   TransactionRecorder
	maxRetries int
	logger     *zap.Logger
	sleep      func(time.Duration)
}

func newTransactionHandler(store TransactionStore, recorder TransactionRecorder, maxRetries int, logger *zap.Logger) *transactionHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transactionHandler{
		store:      store,
		recorder:   recorder,
		maxRetries: maxRetries,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

func (h *transactionHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *transactionHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }
func (h *transactionHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.processMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func decodeTransaction(msg *sarama.ConsumerMessage) (service.Target, domain.Transaction, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return service.Target{}, domain.Transaction{}, fmt.Errorf("failed to unmarshal transaction event: %w", err)
	}
	if evt.TenantID == "" {
		for _, h := range msg.Headers {
			if h != nil && string(h.Key) == TenantHeader {
				evt.TenantID = string(h.Value)
			}
		}
	}
	tx := evt.Transaction
	if tx.ID == "" || tx.UserID == "" {
		return service.Target{}, domain.Transaction{}, errors.New("transaction event missing id or user_id")
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = msg.Timestamp
	}
	return service.Target{TenantID: evt.TenantID}, tx, nil
}

// processMessage persists then records. Redelivery is harmless: the store
// ignores known ids and history deduplicates by id.
func (h *transactionHandler) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	target, tx, err := decodeTransaction(msg)
	if err != nil {
		h.logger.Error("Skipping malformed transaction event",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	for i := 0; i < h.maxRetries; i++ {
		err = h.handle(ctx, target, tx)
		if err == nil {
			return
		}
		if !compliance.Retryable(err) {
			h.logger.Warn("Transaction not recorded",
				zap.String("transaction_id", tx.ID),
				zap.String("tenant_id", target.TenantID),
				zap.Error(err),
			)
			return
		}
		h.logger.Error("Failed to record transaction",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
			zap.Int("retry", i+1),
		)
		if i < h.maxRetries-1 {
			h.sleep(time.Duration(i+1) * time.Second)
		}
	}
	h.logger.Error("Dropping transaction after retries", zap.String("transaction_id", tx.ID))
}

func (h *transactionHandler) handle(ctx context.Context, target service.Target, tx domain.Transaction) error {
	if h.store != nil {
		if err := h.store.InsertTransaction(ctx, tx); err != nil {
			return &compliance.InfraError{Provider: "compliance-service", Service: "transaction store", Err: err}
		}
	}
	return h.recorder.RecordTransaction(ctx, target, tx)
}
