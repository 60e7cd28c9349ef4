package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/mqtt"
	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/tickets"
)

// ErrInvalidReport is returned when a report payload cannot be used.
var ErrInvalidReport = errors.New("events: invalid report payload")

// fileTimeout bounds a single report's RT round trips.
const fileTimeout = 60 * time.Second

// Filer files tickets for fault reports.
type Filer interface {
	File(ctx context.Context, deviceID, subject, text string) (tickets.Result, error)
}

// Broker is the MQTT surface the intake uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Recorder persists ticket events to the journal.
type Recorder interface {
	RecordTicketEvent(ctx context.Context, event *journal.TicketEvent) error
}

// Metrics records ticket outcomes as measurement points.
type Metrics interface {
	WriteTicketEvent(deviceID, outcome, source string, ticketID int)
}

// Logger is the optional logging interface accepted by SetLogger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// report is the inbound payload shape.
type report struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// result is published back after a report has been processed.
type result struct {
	TicketID  int    `json:"ticket_id,omitempty"`
	TicketURL string `json:"ticket_url,omitempty"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// Intake bridges MQTT fault reports to the ticket filer.
type Intake struct {
	filer    Filer
	broker   Broker
	recorder Recorder
	metrics  Metrics
	qos      byte
	logger   Logger
}

// NewIntake creates a fault-report intake. recorder may be nil when the
// journal is disabled.
func NewIntake(filer Filer, broker Broker, recorder Recorder, qos byte) *Intake {
	return &Intake{
		filer:    filer,
		broker:   broker,
		recorder: recorder,
		qos:      qos,
	}
}

// SetLogger attaches a logger. Optional.
func (in *Intake) SetLogger(l Logger) {
	in.logger = l
}

// SetMetrics attaches a metrics writer. Optional.
func (in *Intake) SetMetrics(m Metrics) {
	in.metrics = m
}

// Start subscribes to the report topic. Reports are handled on the broker
// client's handler goroutines.
func (in *Intake) Start() error {
	topic := mqtt.Topics{}.AllReports()
	if err := in.broker.Subscribe(topic, in.qos, in.handleReport); err != nil {
		return fmt.Errorf("subscribing to fault reports: %w", err)
	}
	in.info("fault report intake started", "topic", topic)
	return nil
}

// handleReport processes one inbound fault report.
func (in *Intake) handleReport(topic string, payload []byte) error {
	deviceID := deviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("%w: no device id in topic %q", ErrInvalidReport, topic)
	}

	var rep report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if rep.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidReport)
	}

	ctx, cancel := context.WithTimeout(context.Background(), fileTimeout)
	defer cancel()

	res, err := in.filer.File(ctx, deviceID, rep.Subject, rep.Message)
	if err != nil {
		in.publishResult(deviceID, result{Outcome: "failed", Error: err.Error()})
		return fmt.Errorf("filing ticket for %s: %w", deviceID, err)
	}

	in.info("fault report filed",
		"device_id", deviceID,
		"ticket_id", res.TicketID,
		"outcome", string(res.Outcome),
	)

	in.record(ctx, deviceID, rep.Subject, res)
	in.publishResult(deviceID, result{
		TicketID:  res.TicketID,
		TicketURL: res.TicketURL,
		Outcome:   string(res.Outcome),
	})
	return nil
}

// record journals the ticket event and writes the outcome metric. Journal
// failures are logged, not fatal.
func (in *Intake) record(ctx context.Context, deviceID, subject string, res tickets.Result) {
	if in.metrics != nil {
		in.metrics.WriteTicketEvent(deviceID, string(res.Outcome), journal.SourceMQTT, res.TicketID)
	}

	if in.recorder == nil {
		return
	}
	event := &journal.TicketEvent{
		DeviceID: deviceID,
		Subject:  subject,
		TicketID: res.TicketID,
		Outcome:  string(res.Outcome),
		Source:   journal.SourceMQTT,
	}
	if err := in.recorder.RecordTicketEvent(ctx, event); err != nil {
		in.warn("recording ticket event", "device_id", deviceID, "error", err)
	}
}

// publishResult reports the outcome back over MQTT. Best effort.
func (in *Intake) publishResult(deviceID string, res result) {
	payload, err := json.Marshal(res)
	if err != nil {
		in.warn("encoding ticket result", "device_id", deviceID, "error", err)
		return
	}
	topic := mqtt.Topics{}.TicketResult(deviceID)
	if err := in.broker.Publish(topic, payload, in.qos, false); err != nil {
		in.warn("publishing ticket result", "topic", topic, "error", err)
	}
}

// deviceIDFromTopic extracts the device id from hart/report/{device_id}.
// Deeper topics are rejected so hart/report/a/b does not map to device "a".
func deviceIDFromTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, mqtt.TopicPrefixReport+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

func (in *Intake) info(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Info(msg, args...)
	}
}

func (in *Intake) warn(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Warn(msg, args...)
	}
}
