// Package runtime runs a validated topology: one consumer goroutine per
// queue, each moving envelopes from its queue through generation and on to
// the next queue. Interior stages generate and forward; the terminal stage
// renders into the output document and duplicates to the analytics queue;
// the analytics consumer extracts concepts and sinks them to the log.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/johntango/coursepipeline/broker"
	"github.com/johntango/coursepipeline/logging"
	"github.com/johntango/coursepipeline/pipeline/agents"
	"github.com/johntango/coursepipeline/pipeline/config"
	"github.com/johntango/coursepipeline/pipeline/envelope"
	"github.com/johntango/coursepipeline/pipeline/events"
	"github.com/johntango/coursepipeline/pipeline/observability"
)

// Appender receives rendered sections from the terminal stage.
type Appender interface {
	Append(sectionID, heading, body string) error
}

// stageProcessor consumes one queue and produces to the next.
type stageProcessor struct {
	stage    *config.StageConfig
	terminal string
	broker   broker.Broker
	recorder events.Recorder
	gen      agents.Generator
	instr    string
	log      logging.Logger
}

func (p *stageProcessor) run(ctx context.Context) {
	for {
		msg, err := p.broker.Dequeue(ctx, p.stage.Queue)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			var closedErr *broker.ClosedError
			if errors.As(err, &closedErr) {
				return
			}
			p.log.Error("dequeue failed", "stage", p.stage.Name, "error", err)
			return
		}
		p.handle(ctx, msg)
	}
}

func (p *stageProcessor) handle(ctx context.Context, msg *broker.Message) {
	env := msg.Envelope
	ctx, span := observability.StartStageSpan(ctx, p.stage.Name, p.stage.Queue, env.CorrelationID)
	defer span.End()

	start := time.Now()
	log := p.log.Bind("stage", p.stage.Name, "correlation_id", env.CorrelationID, "title", env.Title)

	if err := p.recorder.Record(ctx, events.KindConsume, p.stage.Queue, env.CorrelationID, env.Payload); err != nil {
		log.Error("consume event record failed", "error", err)
	}

	// Round limit reached: hand the envelope to the terminal queue as-is,
	// without another generation pass.
	if p.stage.MaxRounds > 0 && env.Round >= p.stage.MaxRounds {
		if err := p.recorder.Record(ctx, events.KindForward, p.terminal, env.CorrelationID, env.Payload); err != nil {
			log.Error("forward event record failed", "error", err)
		}
		if err := p.broker.Enqueue(ctx, p.terminal, env); err != nil {
			log.Error("forward enqueue failed", "error", err)
			_ = p.broker.Fail(ctx, msg, err.Error())
			observability.RecordStageExecution(p.stage.Name, "error", time.Since(start))
			return
		}
		if err := p.broker.Complete(ctx, msg); err != nil {
			log.Error("complete failed", "error", err)
		}
		observability.RecordStageExecution(p.stage.Name, "forwarded", time.Since(start))
		log.Info("round limit reached, forwarded to terminal", "round", env.Round)
		return
	}

	output, err := p.generate(ctx, env)
	if err != nil {
		log.Error("generation failed", "error", err)
		_ = p.broker.Fail(ctx, msg, err.Error())
		observability.RecordStageExecution(p.stage.Name, "error", time.Since(start))
		return
	}

	next := env.WithPayload(output)
	if p.stage.IncrementRound {
		next = env.NextRound(output)
	}

	if err := p.recorder.Record(ctx, events.KindProduce, p.stage.Output, next.CorrelationID, next.Payload); err != nil {
		log.Error("produce event record failed", "error", err)
	}
	if err := p.broker.Enqueue(ctx, p.stage.Output, next); err != nil {
		log.Error("produce enqueue failed", "error", err)
		_ = p.broker.Fail(ctx, msg, err.Error())
		observability.RecordStageExecution(p.stage.Name, "error", time.Since(start))
		return
	}
	if err := p.broker.Complete(ctx, msg); err != nil {
		log.Error("complete failed", "error", err)
	}

	observability.RecordStageExecution(p.stage.Name, "success", time.Since(start))
	log.Debug("stage complete", "output_queue", p.stage.Output)
}

func (p *stageProcessor) generate(ctx context.Context, env envelope.Envelope) (string, error) {
	start := time.Now()
	output, err := p.gen.Generate(ctx, p.instr, env.Payload)
	if err != nil {
		observability.RecordGenerationCall(p.stage.Agent, "error", time.Since(start))
		return "", agents.NewGenerationError(p.stage.Agent, err)
	}
	observability.RecordGenerationCall(p.stage.Agent, "success", time.Since(start))
	return output, nil
}

// terminalProcessor renders finished envelopes and feeds the analytics
// branch.
type terminalProcessor struct {
	stage     *config.StageConfig
	analytics string
	broker    broker.Broker
	recorder  events.Recorder
	gen       agents.Generator
	instr     string
	doc       Appender
	log       logging.Logger
}

func (p *terminalProcessor) run(ctx context.Context) {
	for {
		msg, err := p.broker.Dequeue(ctx, p.stage.Queue)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			var closedErr *broker.ClosedError
			if errors.As(err, &closedErr) {
				return
			}
			p.log.Error("dequeue failed", "stage", p.stage.Name, "error", err)
			return
		}
		p.handle(ctx, msg)
	}
}

func (p *terminalProcessor) handle(ctx context.Context, msg *broker.Message) {
	env := msg.Envelope
	ctx, span := observability.StartStageSpan(ctx, p.stage.Name, p.stage.Queue, env.CorrelationID)
	defer span.End()

	start := time.Now()
	log := p.log.Bind("stage", p.stage.Name, "correlation_id", env.CorrelationID, "title", env.Title)

	if err := p.recorder.Record(ctx, events.KindConsume, p.stage.Queue, env.CorrelationID, env.Payload); err != nil {
		log.Error("consume event record failed", "error", err)
	}

	genStart := time.Now()
	output, err := p.gen.Generate(ctx, p.instr, env.Payload)
	if err != nil {
		observability.RecordGenerationCall(p.stage.Agent, "error", time.Since(genStart))
		log.Error("generation failed", "error", err)
		_ = p.broker.Fail(ctx, msg, agents.NewGenerationError(p.stage.Agent, err).Error())
		observability.RecordStageExecution(p.stage.Name, "error", time.Since(start))
		return
	}
	observability.RecordGenerationCall(p.stage.Agent, "success", time.Since(genStart))

	if err := p.doc.Append(env.Title, env.Title, output); err != nil {
		observability.RecordSectionRendered("error")
		log.Error("render failed", "error", err)
		_ = p.broker.Fail(ctx, msg, err.Error())
		observability.RecordStageExecution(p.stage.Name, "error", time.Since(start))
		return
	}
	observability.RecordSectionRendered("success")

	if p.analytics != "" {
		dup := env.WithPayload(output)
		if err := p.recorder.Record(ctx, events.KindProduce, p.analytics, dup.CorrelationID, dup.Payload); err != nil {
			log.Error("produce event record failed", "error", err)
		}
		if err := p.broker.Enqueue(ctx, p.analytics, dup); err != nil {
			log.Error("analytics enqueue failed", "error", err)
		}
	}

	if err := p.broker.Complete(ctx, msg); err != nil {
		log.Error("complete failed", "error", err)
	}

	observability.RecordStageExecution(p.stage.Name, "success", time.Since(start))
	log.Info("section rendered", "round", env.Round)
}

// analyticsProcessor consumes the analytics queue. Its output leaves the
// pipeline through the log.
type analyticsProcessor struct {
	queue    string
	agent    string
	broker   broker.Broker
	recorder events.Recorder
	gen      agents.Generator
	instr    string
	log      logging.Logger
}

func (p *analyticsProcessor) run(ctx context.Context) {
	for {
		msg, err := p.broker.Dequeue(ctx, p.queue)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			var closedErr *broker.ClosedError
			if errors.As(err, &closedErr) {
				return
			}
			p.log.Error("dequeue failed", "queue", p.queue, "error", err)
			return
		}
		p.handle(ctx, msg)
	}
}

func (p *analyticsProcessor) handle(ctx context.Context, msg *broker.Message) {
	env := msg.Envelope
	ctx, span := observability.StartStageSpan(ctx, "analytics", p.queue, env.CorrelationID)
	defer span.End()

	start := time.Now()
	log := p.log.Bind("stage", "analytics", "correlation_id", env.CorrelationID, "title", env.Title)

	if err := p.recorder.Record(ctx, events.KindConsume, p.queue, env.CorrelationID, env.Payload); err != nil {
		log.Error("consume event record failed", "error", err)
	}

	genStart := time.Now()
	output, err := p.gen.Generate(ctx, p.instr, env.Payload)
	if err != nil {
		observability.RecordGenerationCall(p.agent, "error", time.Since(genStart))
		log.Error("generation failed", "error", err)
		_ = p.broker.Fail(ctx, msg, agents.NewGenerationError(p.agent, err).Error())
		observability.RecordStageExecution("analytics", "error", time.Since(start))
		return
	}
	observability.RecordGenerationCall(p.agent, "success", time.Since(genStart))

	if err := p.broker.Complete(ctx, msg); err != nil {
		log.Error("complete failed", "error", err)
	}

	observability.RecordStageExecution("analytics", "success", time.Since(start))
	log.Info("analytics extracted", "concepts", output)
}
