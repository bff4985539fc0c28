package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobPrecompute  = "precompute"
	JobHealthCheck = "health_check"
)

// ErrUnknownJob is returned by Dispatch for unrecognised job types.
var ErrUnknownJob = errors.New("unknown job type")

// healthCheckTarget is the single series computed by a health check.
var healthCheckTarget = Target{City: "Delhi", Gas: "CO"}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *PrecomputeJob
	Logger           zerolog.Logger
}

// JobMessage is a worker job request.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Cities and Gases narrow a precompute run. Empty uses the configured
	// targets.
	Cities []string `json:"cities,omitempty"`
	Gases  []string `json:"gases,omitempty"`
	Year   int      `json:"year,omitempty"`
}

// Dispatcher decodes job messages and runs them against a precompute job.
type Dispatcher struct {
	job    *PrecomputeJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *PrecomputeJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch parses data as a JobMessage and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("parsing message: %w", err)
	}

	switch msg.JobType {
	case JobPrecompute:
		return msg.JobType, d.precompute(ctx, msg)
	case JobHealthCheck:
		return msg.JobType, d.healthCheck(ctx)
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (d *Dispatcher) precompute(ctx context.Context, msg JobMessage) error {
	targets := d.job.Config().Targets
	if len(msg.Cities) > 0 || len(msg.Gases) > 0 {
		cities, gases := msg.Cities, msg.Gases
		if len(cities) == 0 {
			cities = DefaultCities
		}
		if len(gases) == 0 {
			gases = DefaultGases
		}
		targets = Targets(cities, gases)
	}

	result := d.job.RunTargets(ctx, targets, msg.Year)

	// Successful if at least half the targets completed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many precompute failures: %d/%d", result.Failed, result.TotalTargets)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	result := d.job.RunTargets(ctx, []Target{healthCheckTarget}, 0)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.Job, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	jobType, err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		logger.Warn().Str("job_type", jobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	case err != nil:
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
