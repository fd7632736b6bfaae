package lifecycle

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TypeRoomSweep is the periodic expiration sweep task.
const TypeRoomSweep = "rooms:sweep"

// WorkerServer runs the asynq worker that executes scheduled sweeps.
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	sweeper   *Sweeper
	schedule  string
}

func NewWorkerServer(redisOpt asynq.RedisClientOpt, sweeper *Sweeper, schedule string) *WorkerServer {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithError(err).WithField("task_type", task.Type()).Error("task failed")
		}),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	return &WorkerServer{
		server:    server,
		scheduler: scheduler,
		sweeper:   sweeper,
		schedule:  schedule,
	}
}

// Start registers the sweep task on its schedule and runs the worker. Call
// from a goroutine.
func (ws *WorkerServer) Start() {
	log := logrus.WithField("component", "worker")

	entryID, err := ws.scheduler.Register(ws.schedule, asynq.NewTask(TypeRoomSweep, nil), asynq.Queue("default"))
	if err != nil {
		log.WithError(err).Error("could not register periodic sweep task")
	} else {
		log.WithFields(logrus.Fields{"schedule": ws.schedule, "entry_id": entryID}).Info("periodic sweep registered")
	}

	go func() {
		if err := ws.scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			log.WithError(err).Error("scheduler stopped")
		}
	}()

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRoomSweep, ws.handleSweep)

	log.Info("worker server starting")
	if err := ws.server.Run(mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		log.WithError(err).Fatal("could not run worker server")
	}
}

func (ws *WorkerServer) handleSweep(ctx context.Context, t *asynq.Task) error {
	ws.sweeper.Sweep(ctx)
	// Sweep never reports failure upward; failed deletes wait for the
	// next cycle.
	return nil
}

// Shutdown stops the scheduler and drains the worker.
func (ws *WorkerServer) Shutdown() {
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
}
