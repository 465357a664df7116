package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/safdo/cryptoshield/internal/idgen"
	"github.com/safdo/cryptoshield/internal/logging"
	"github.com/safdo/cryptoshield/internal/metrics"
	"github.com/safdo/cryptoshield/internal/traces"
)

// webhookTimeout bounds each outbound delivery attempt.
const webhookTimeout = 5 * time.Second

// Credentials holds the per-channel delivery configuration.
type Credentials struct {
	DiscordWebhookURL string
	GenericWebhookURL string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
}

// outcome is one channel's dispatch result before it becomes a Log.
type outcome struct {
	status Status
	err    string
	detail string
}

// Relay fans an event out to its requested channels. The dry-run flag is
// fixed at construction; changing it requires a restart. Channel handlers
// are a dispatch table keyed by channel kind.
type Relay struct {
	creds    Credentials
	dryRun   bool
	store    Store
	http     *http.Client
	handlers map[Channel]func(ctx context.Context, e *Event) outcome
}

// NewRelay builds a relay. store may be nil, in which case no audit trail
// is kept.
func NewRelay(creds Credentials, dryRun bool, store Store) *Relay {
	r := &Relay{
		creds:  creds,
		dryRun: dryRun,
		store:  store,
		http:   &http.Client{Timeout: webhookTimeout},
	}
	r.handlers = map[Channel]func(ctx context.Context, e *Event) outcome{
		ChannelDiscord: r.dispatchDiscord,
		ChannelEmail:   r.dispatchEmail,
		ChannelWebhook: r.dispatchWebhook,
		ChannelMobile:  r.dispatchMobile,
	}
	return r
}

// DryRun reports the relay's fixed mode.
func (r *Relay) DryRun() bool {
	return r.dryRun
}

// Dispatch delivers the event on each requested channel. One log entry per
// channel; a failure on one channel never blocks another and nothing is
// raised to the caller.
func (r *Relay) Dispatch(ctx context.Context, event *Event) []*Log {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	logger := logging.L(ctx)
	logs := make([]*Log, 0, len(event.Channels))
	for _, raw := range event.Channels {
		out := r.dispatchChannel(ctx, raw, event)

		l := &Log{
			ID:        idgen.WithPrefix("ntf_"),
			UserID:    event.UserID,
			EventType: event.EventType,
			Channel:   raw,
			Status:    out.status,
			Error:     out.err,
			Detail:    out.detail,
			CreatedAt: time.Now().UTC(),
		}
		logs = append(logs, l)

		metrics.NotificationsTotal.WithLabelValues(raw, string(out.status)).Inc()
		logger.Info("notification dispatched",
			"channel", raw, "status", out.status, "event_type", event.EventType, "user_id", event.UserID)

		if r.store != nil {
			if err := r.store.Append(ctx, l); err != nil {
				logger.Warn("failed to append notification log", "id", l.ID, "error", err)
			}
		}
	}
	return logs
}

// dispatchChannel resolves and runs one channel's handler under its own span.
func (r *Relay) dispatchChannel(ctx context.Context, raw string, event *Event) outcome {
	ctx, span := traces.StartSpan(ctx, "notify.dispatch",
		traces.NotifyChannel(raw), traces.EventType(event.EventType), traces.UserID(event.UserID))
	defer span.End()

	var out outcome
	ch, known := ParseChannel(raw)
	switch {
	case !known:
		out = outcome{status: StatusUnsupported}
	case r.dryRun:
		out = r.dryRunOutcome(ch, event)
	default:
		out = r.handlers[ch](ctx, event)
	}

	if out.status == StatusError {
		span.SetStatus(codes.Error, out.err)
	}
	return out
}

// dryRunOutcome records what would have been sent without any network I/O.
// The destination is shown as NOT_CONFIGURED when credentials are absent.
func (r *Relay) dryRunOutcome(ch Channel, event *Event) outcome {
	dest := "NOT_CONFIGURED"
	if r.configured(ch) {
		dest = "configured"
	}
	return outcome{
		status: StatusDryRun,
		detail: fmt.Sprintf("would send %s via %s (destination: %s)", event.EventType, ch, dest),
	}
}

func (r *Relay) configured(ch Channel) bool {
	switch ch {
	case ChannelDiscord:
		return r.creds.DiscordWebhookURL != ""
	case ChannelWebhook:
		return r.creds.GenericWebhookURL != ""
	case ChannelEmail:
		return r.creds.SMTPHost != "" && r.creds.SMTPUser != ""
	default:
		return false
	}
}

func (r *Relay) dispatchDiscord(ctx context.Context, event *Event) outcome {
	if r.creds.DiscordWebhookURL == "" {
		return outcome{status: StatusNotConfigured}
	}

	body := map[string]string{"content": formatDiscordMessage(event)}
	return r.post(ctx, r.creds.DiscordWebhookURL, body)
}

func (r *Relay) dispatchWebhook(ctx context.Context, event *Event) outcome {
	if r.creds.GenericWebhookURL == "" {
		return outcome{status: StatusNotConfigured}
	}

	envelope := map[string]any{
		"event_type": event.EventType,
		"user_id":    event.UserID,
		"payload":    event.Payload,
		"timestamp":  event.Timestamp.Format(time.RFC3339),
	}
	return r.post(ctx, r.creds.GenericWebhookURL, envelope)
}

// dispatchEmail is a named extension point: the SMTP contract is configured
// but delivery is intentionally not built, and callers can assert on the
// not_implemented status.
func (r *Relay) dispatchEmail(ctx context.Context, event *Event) outcome {
	if r.creds.SMTPHost == "" || r.creds.SMTPUser == "" {
		return outcome{status: StatusNotConfigured}
	}
	return outcome{
		status: StatusNotImplemented,
		detail: "SMTP delivery is not implemented",
	}
}

// dispatchMobile is a reserved channel with no backing provider.
func (r *Relay) dispatchMobile(ctx context.Context, event *Event) outcome {
	return outcome{status: StatusNotConfigured}
}

// post delivers a JSON body and classifies the result. Any 2xx counts as
// sent (Discord answers 204).
func (r *Relay) post(ctx context.Context, url string, body any) outcome {
	data, err := json.Marshal(body)
	if err != nil {
		return outcome{status: StatusError, err: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return outcome{status: StatusError, err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return outcome{status: StatusError, err: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return outcome{status: StatusError, err: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return outcome{status: StatusSent}
}

// formatDiscordMessage renders the payload as a titled key/value message.
func formatDiscordMessage(event *Event) string {
	lines := []string{fmt.Sprintf("Cryptoshield alert: %s", strings.ToUpper(event.EventType)), ""}

	keys := make([]string, 0, len(event.Payload))
	for k := range event.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("**%s:** %v", strings.ReplaceAll(k, "_", " "), event.Payload[k]))
	}
	return strings.Join(lines, "\n")
}
