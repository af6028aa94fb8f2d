package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/alimda/cryptofolio/internal/domain"
)

var (
	alertSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alert_sweeps_total",
		Help: "Number of alert evaluation sweeps performed.",
	})
	alertsFiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_fired_total",
		Help: "Number of alert rules fired across all sweeps.",
	})
)

func init() {
	prometheus.MustRegister(alertSweepsTotal, alertsFiredTotal)
}

// MarketSource supplies price snapshots for evaluation.
type MarketSource interface {
	Refresh(ctx context.Context) error
	Latest() (*domain.MarketSnapshot, bool)
}

// AlertEvaluator sweeps the rule set against a snapshot.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, snapshot *domain.PriceSnapshot) ([]domain.AlertRule, error)
}

// Notifier delivers fired rules to subscribers.
type Notifier interface {
	NotifyTriggered(rules []domain.AlertRule, snapshot *domain.PriceSnapshot)
}

const jobTimeout = 30 * time.Second

// MarketRefreshJob periodically pulls fresh market data.
type MarketRefreshJob struct {
	Source MarketSource
}

func (j *MarketRefreshJob) Name() string { return "market-refresh" }

func (j *MarketRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.Source.Refresh(ctx)
}

// AlertSweepJob evaluates all armed alert rules against the latest market
// snapshot and pushes notifications for the ones that fire.
type AlertSweepJob struct {
	Source    MarketSource
	Evaluator AlertEvaluator
	Notifier  Notifier
	Log       zerolog.Logger
}

func (j *AlertSweepJob) Name() string { return "alert-sweep" }

func (j *AlertSweepJob) Run() error {
	snap, ok := j.Source.Latest()
	if !ok {
		j.Log.Debug().Msg("No market snapshot yet, skipping alert sweep")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	prices := snap.PriceSnapshot()
	fired, err := j.Evaluator.Evaluate(ctx, prices)
	alertSweepsTotal.Inc()
	alertsFiredTotal.Add(float64(len(fired)))

	if len(fired) > 0 {
		j.Log.Info().Int("fired", len(fired)).Msg("Alert rules triggered")
		if j.Notifier != nil {
			j.Notifier.NotifyTriggered(fired, prices)
		}
	}
	// Fired rules were already delivered; a persistence error here only
	// means the triggered markers may be re-fired after a restart.
	return err
}
