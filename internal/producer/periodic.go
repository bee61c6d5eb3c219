package producer

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/engine"
	"github.com/vehicle-signal/vis-server/internal/logger"
)

// periodicTaskState pairs a manifest task with the counter its fires
// increment when the task has no static value of its own.
type periodicTaskState struct {
	task    PeriodicTask
	counter int64
}

// PeriodicProducer feeds UpdateSignal operations into the engine on a
// schedule, one goroutine per ticker-driven task plus one shared
// robfig/cron scheduler for the cron-driven tasks.
type PeriodicProducer struct {
	eng    *engine.Engine
	log    *zerolog.Logger
	tasks  []PeriodicTask
	cron   *cron.Cron
	stopCh []chan struct{}
}

// NewPeriodicProducer prepares a periodic producer for the given manifest
// tasks. Call Start to begin firing them.
func NewPeriodicProducer(tasks []PeriodicTask, eng *engine.Engine) *PeriodicProducer {
	return &PeriodicProducer{
		eng:   eng,
		log:   logger.Producer(),
		tasks: tasks,
		cron:  cron.New(),
	}
}

// Start launches every task: interval tasks on their own ticker goroutine,
// cron tasks registered with the shared scheduler, which is then started.
func (p *PeriodicProducer) Start() error {
	for i := range p.tasks {
		task := p.tasks[i]
		state := &periodicTaskState{task: task}

		if task.Cron != "" {
			if _, err := p.cron.AddFunc(task.Cron, func() { p.fire(state) }); err != nil {
				return err
			}
			p.log.Info().Str("path", task.Path).Str("cron", task.Cron).Msg("periodic producer task registered")
			continue
		}

		stop := make(chan struct{})
		p.stopCh = append(p.stopCh, stop)
		go p.runTicker(state, stop)
		p.log.Info().Str("path", task.Path).Int64("intervalMs", task.IntervalMillis).Msg("periodic producer task registered")
	}

	p.cron.Start()
	return nil
}

// Close stops the ticker goroutines and the cron scheduler.
func (p *PeriodicProducer) Close() {
	for _, stop := range p.stopCh {
		close(stop)
	}
	ctx := p.cron.Stop()
	<-ctx.Done()
}

func (p *PeriodicProducer) runTicker(state *periodicTaskState, stop chan struct{}) {
	ticker := time.NewTicker(time.Duration(state.task.IntervalMillis) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.fire(state)
		case <-stop:
			return
		}
	}
}

func (p *PeriodicProducer) fire(state *periodicTaskState) {
	p.eng.UpdateSignal(codec.NewPath(state.task.Path), state.nextValue())
}

// nextValue reports the task's configured static value unchanged, or, for
// a task with none, a monotonically increasing counter starting at zero —
// mirroring the reference implementation's interval demo signal, whose
// entire purpose is to give interval subscribers something that changes
// on every tick.
func (s *periodicTaskState) nextValue() codec.Value {
	if len(s.task.Value) > 0 {
		return codec.ValueFromJSON(s.task.Value)
	}
	n := atomic.AddInt64(&s.counter, 1) - 1
	v, _ := codec.ValueFromAny(n)
	return v
}
