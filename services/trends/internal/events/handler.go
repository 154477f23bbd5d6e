package events

import (
	"context"
	"encoding/json"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/telemetry"
	"jobtrends/services/trends/internal/processor"
	"jobtrends/services/trends/internal/slicer"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("trends/events")

const (
	KindAll          = "all"
	KindSkillTrends  = "skill-trends"
	KindPeriodSlices = "period-slices"
)

type Runner interface {
	RunSkillTrends(ctx context.Context, now time.Time) (*processor.Report, error)
	RunPeriodSlices(ctx context.Context, period string, now time.Time) (*processor.Report, error)
	RunAll(ctx context.Context, period string, now time.Time) ([]*processor.Report, error)
}

type DetailService interface {
	Detail(ctx context.Context, skill, region, period string) (slicer.Detail, error)
}

// Trigger asks for an aggregation run. An empty body means every kind for
// the current period.
type Trigger struct {
	Kind   string `json:"kind,omitempty"`
	Period string `json:"period,omitempty"`
}

type DetailRequest struct {
	Skill  string `json:"skill"`
	Region string `json:"region,omitempty"`
	Period string `json:"period"`
}

type Response struct {
	Reports []*processor.Report `json:"reports,omitempty"`
	Detail  *slicer.Detail      `json:"detail,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    errors.ErrorType    `json:"code,omitempty"`
}

type Handler struct {
	logger         *zap.Logger
	nc             *nats.Conn
	runner         Runner
	details        DetailService
	triggerSubject string
	detailSubject  string
	queue          string
	runTimeout     time.Duration
	now            func() time.Time

	subs []*nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, runner Runner, details DetailService, triggerSubject, detailSubject, queue string, runTimeout time.Duration) *Handler {
	if runTimeout <= 0 {
		runTimeout = 30 * time.Minute
	}
	return &Handler{
		logger:         logger,
		nc:             nc,
		runner:         runner,
		details:        details,
		triggerSubject: triggerSubject,
		detailSubject:  detailSubject,
		queue:          queue,
		runTimeout:     runTimeout,
		now:            time.Now,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	trigger, err := h.nc.QueueSubscribe(h.triggerSubject, h.queue, h.handleTrigger)
	if err != nil {
		return errors.Unavailable("subscribe to "+h.triggerSubject, err)
	}
	detail, err := h.nc.QueueSubscribe(h.detailSubject, h.queue, h.handleDetail)
	if err != nil {
		_ = trigger.Unsubscribe()
		return errors.Unavailable("subscribe to "+h.detailSubject, err)
	}

	h.subs = []*nats.Subscription{trigger, detail}
	h.logger.Info("registered nats subscriptions",
		zap.String("trigger", h.triggerSubject),
		zap.String("detail", h.detailSubject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			for _, sub := range h.subs {
				if err := sub.Unsubscribe(); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return nil
}

func (h *Handler) handleTrigger(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
	defer cancel()

	resp := h.Trigger(ctx, msg.Data)
	if resp.Error != "" {
		h.logger.Error("aggregation run failed",
			zap.String("subject", msg.Subject),
			zap.String("error", resp.Error))
	}
	h.reply(msg, resp)
}

func (h *Handler) handleDetail(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h.reply(msg, h.Detail(ctx, msg.Data))
}

// Trigger decodes and runs one aggregation request.
func (h *Handler) Trigger(ctx context.Context, data []byte) Response {
	ctx, span := tracer.Start(ctx, "Handler.Trigger")
	defer span.End()

	var t Trigger
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t); err != nil {
			return failure(errors.InvalidInput("trigger payload", err))
		}
	}
	if t.Kind == "" {
		t.Kind = KindAll
	}
	span.SetAttributes(telemetry.String("kind", t.Kind), telemetry.String("period", t.Period))

	now := h.now()
	var (
		reports []*processor.Report
		err     error
	)
	switch t.Kind {
	case KindAll:
		reports, err = h.runner.RunAll(ctx, t.Period, now)
	case KindSkillTrends:
		var r *processor.Report
		r, err = h.runner.RunSkillTrends(ctx, now)
		reports = []*processor.Report{r}
	case KindPeriodSlices:
		var r *processor.Report
		r, err = h.runner.RunPeriodSlices(ctx, t.Period, now)
		reports = []*processor.Report{r}
	default:
		return failure(errors.InvalidInput("unknown trigger kind "+t.Kind, nil))
	}

	resp := Response{Reports: reports}
	if err != nil {
		span.RecordError(err)
		resp.Error = err.Error()
		resp.Code, _ = errors.TypeOf(err)
	}
	for _, r := range reports {
		if r == nil {
			continue
		}
		h.logger.Info("aggregation run finished",
			zap.String("kind", r.Kind),
			zap.String("period", r.Period),
			zap.Int("postings", r.Postings),
			zap.Int("failed_chunks", r.FailedChunks),
			zap.Duration("duration", r.Duration))
	}
	return resp
}

// Detail decodes and answers one skill detail query.
func (h *Handler) Detail(ctx context.Context, data []byte) Response {
	var req DetailRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return failure(errors.InvalidInput("detail request payload", err))
	}

	d, err := h.details.Detail(ctx, req.Skill, req.Region, req.Period)
	if err != nil {
		h.logger.Warn("skill detail failed",
			zap.String("skill", req.Skill),
			zap.String("period", req.Period),
			zap.Error(err))
		return failure(err)
	}
	return Response{Detail: &d}
}

func failure(err error) Response {
	resp := Response{Error: err.Error()}
	resp.Code, _ = errors.TypeOf(err)
	return resp
}

func (h *Handler) reply(msg *nats.Msg, resp Response) {
	if msg.Reply == "" {
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	if err := msg.Respond(body); err != nil {
		h.logger.Error("failed to send reply",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}
