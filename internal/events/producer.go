package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/banking/regional-compliance/internal/config"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/google/uuid"
)

// NewSyncProducer creates a producer that waits for all in-sync replicas
func NewSyncProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = cfg.MaxRetries
	if cfg.EnableIdempotent {
		config.Producer.Idempotent = true
		config.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

// FilingPublisher hands filed reports to the regulator gateway, one topic
// per regulator
type FilingPublisher struct {
	producer sarama.SyncProducer
	prefix   string
}

func NewFilingPublisher(producer sarama.SyncProducer, topicPrefix string) *FilingPublisher {
	return &FilingPublisher{producer: producer, prefix: topicPrefix}
}

// FilingTopic returns the topic a report is published to
func (p *FilingPublisher) FilingTopic(report *domain.ComplianceReport) string {
	regulator, _ := report.Payload["regulator"].(string)
	if regulator == "" {
		regulator = report.Jurisdiction
	}
	return p.prefix + strings.ToLower(strings.ReplaceAll(regulator, " ", "-"))
}

// Submit publishes the report keyed by report id. The acknowledgment
// number travels as a header so the gateway can drop redeliveries.
func (p *FilingPublisher) Submit(ctx context.Context, report *domain.ComplianceReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.FilingTopic(report),
		Key:   sarama.StringEncoder(report.ReportID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("acknowledgment-number"), Value: []byte(report.AcknowledgmentNumber)},
			{Key: []byte("report-type"), Value: []byte(report.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish report %s: %w", report.ReportID, err)
	}
	return nil
}

// AlertEvent is published for every AML result that is not a plain approve
type AlertEvent struct {
	EventID        uuid.UUID             `json:"event_id"`
	TenantID       string                `json:"tenant_id,omitempty"`
	UserID         string                `json:"user_id"`
	TransactionID  string                `json:"transaction_id"`
	Provider       string                `json:"provider"`
	RiskScore      int                   `json:"risk_score"`
	RiskLevel      domain.RiskLevel      `json:"risk_level"`
	Recommendation domain.Recommendation `json:"recommendation"`
	ReportType     domain.ReportType     `json:"report_type,omitempty"`
	Alerts         []domain.AMLAlert     `json:"alerts"`
	Timestamp      time.Time             `json:"timestamp"`
}

// AlertPublisher sends AML alerts to the case management topic
type AlertPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewAlertPublisher(producer sarama.SyncProducer, topic string) *AlertPublisher {
	return &AlertPublisher{producer: producer, topic: topic}
}

func (p *AlertPublisher) PublishAMLAlert(ctx context.Context, tenantID, userID string, res *domain.AMLResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	evt := AlertEvent{
		EventID:        uuid.New(),
		TenantID:       tenantID,
		UserID:         userID,
		TransactionID:  res.TransactionID,
		Provider:       res.Provider,
		RiskScore:      res.RiskScore,
		RiskLevel:      res.RiskLevel,
		Recommendation: res.Recommendation,
		Alerts:         res.Alerts,
		Timestamp:      res.CheckedAt,
	}
	if res.RequiresReporting {
		evt.ReportType = res.ReportType
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}
