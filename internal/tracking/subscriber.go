package tracking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
)

// LocationMessage is what driver apps publish on
// <prefix>/drivers/{driverId}/location.
type LocationMessage struct {
	JobID      string     `json:"job_id"`
	Lat        *float64   `json:"lat"`
	Lng        *float64   `json:"lng"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	Status     string     `json:"status,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// FixRecorder stores a validated fix.
type FixRecorder interface {
	RecordFix(ctx context.Context, fix model.DriverLocation) error
}

// LocationSubscriber feeds driver location messages into a FixRecorder.
type LocationSubscriber struct {
	broker   *Broker
	recorder FixRecorder
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewLocationSubscriber creates a subscriber. Each message is handled with
// its own timeout so a slow database cannot stall the MQTT client.
func NewLocationSubscriber(broker *Broker, recorder FixRecorder, timeout time.Duration, log zerolog.Logger) *LocationSubscriber {
	return &LocationSubscriber{broker: broker, recorder: recorder, timeout: timeout, log: log, now: time.Now}
}

// Start subscribes to every driver's location topic.
func (s *LocationSubscriber) Start() error {
	topic := s.broker.Topic("drivers", "+", "location")
	if err := s.broker.subscribe(topic, s.handle); err != nil {
		return err
	}
	s.log.Info().Str("topic", topic).Msg("subscribed to driver locations")
	return nil
}

func (s *LocationSubscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	driverID, ok := driverFromTopic(s.broker.prefix, msg.Topic())
	if !ok {
		s.log.Warn().Str("topic", msg.Topic()).Msg("unexpected location topic")
		return
	}

	var m LocationMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil || m.JobID == "" || m.Lat == nil || m.Lng == nil {
		s.log.Warn().Err(err).Str("driver_id", driverID).Msg("invalid location message")
		return
	}

	fix := model.DriverLocation{
		DriverID:   driverID,
		JobID:      m.JobID,
		Lat:        *m.Lat,
		Lng:        *m.Lng,
		Accuracy:   m.Accuracy,
		Heading:    m.Heading,
		Speed:      m.Speed,
		Status:     m.Status,
		RecordedAt: s.now().UTC(),
	}
	if m.RecordedAt != nil {
		fix.RecordedAt = m.RecordedAt.UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.recorder.RecordFix(ctx, fix); err != nil {
		s.log.Warn().Err(err).Str("driver_id", driverID).Str("job_id", m.JobID).Msg("location fix rejected")
	}
}

// driverFromTopic extracts {driverId} from <prefix>/drivers/{driverId}/location.
func driverFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/drivers/")
	if !ok {
		return "", false
	}
	driverID, ok := strings.CutSuffix(rest, "/location")
	if !ok || driverID == "" || strings.Contains(driverID, "/") {
		return "", false
	}
	return driverID, true
}
