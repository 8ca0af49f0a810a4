package alert

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/siqueiraa/FraudFlow/pkg/metrics"
	"github.com/siqueiraa/FraudFlow/pkg/risk"
)

// Status is the per-record dispatch result.
type Status string

const (
	StatusPublished   Status = "published"
	StatusNotHighRisk Status = "not_high_risk"
	StatusFailed      Status = "failed"
)

// Stage names the step a failed record stopped at.
type Stage string

const (
	StageDecode  Stage = "decode"
	StagePublish Stage = "publish"
)

// Result is the dispatch result for one record.
type Result struct {
	RecordID string
	Status   Status
	Stage    Stage
	AlertID  string
	Err      error
}

// Report collects the results of one batch, in input order.
type Report struct {
	Results []Result
}

func (r Report) Published() int { return r.count(StatusPublished) }

func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

func (r Report) count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Dispatcher publishes an alert for every high-risk record of a batch.
// Failed records are reported and logged; publishing is not retried.
type Dispatcher struct {
	evaluator *risk.Evaluator
	notifier  Notifier
	workers   int
}

func NewDispatcher(evaluator *risk.Evaluator, notifier Notifier, workers int) *Dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Dispatcher{evaluator: evaluator, notifier: notifier, workers: workers}
}

func (d *Dispatcher) Dispatch(ctx context.Context, batch []Source) Report {
	start := time.Now()
	report := Report{Results: make([]Result, len(batch))}

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i := range batch {
		g.Go(func() error {
			report.Results[i] = d.dispatchOne(ctx, batch[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range report.Results {
		metrics.AlertRecords.WithLabelValues(string(batch[i].Trigger()), string(res.Status)).Inc()
		if res.Status == StatusFailed {
			log.Printf("[Alert] record %s failed at %s: %v", res.RecordID, res.Stage, res.Err)
		}
	}
	metrics.BatchDuration.WithLabelValues("alert").Observe(time.Since(start).Seconds())
	return report
}

func (d *Dispatcher) dispatchOne(ctx context.Context, src Source) (res Result) {
	res.RecordID = src.ID()
	stage := StageDecode
	defer func() {
		if r := recover(); r != nil {
			res = Result{RecordID: src.ID(), Status: StatusFailed, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	scored, err := src.Score(d.evaluator)
	if err != nil {
		res.Status, res.Stage, res.Err = StatusFailed, StageDecode, err
		return res
	}
	if !scored.Verdict.HighRisk {
		res.Status = StatusNotHighRisk
		return res
	}

	stage = StagePublish
	msg := NewMessage(scored)
	res.AlertID = msg.Body.AlertID
	if err := d.notifier.Publish(ctx, msg); err != nil {
		res.Status, res.Stage, res.Err = StatusFailed, StagePublish, err
		return res
	}
	log.Printf("[Alert] published %s for tx=%s reason=%s", msg.Body.AlertID, msg.TransactionID(), msg.Body.Reason)
	res.Status = StatusPublished
	return res
}
