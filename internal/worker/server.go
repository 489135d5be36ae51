package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/repository"
	"dispatch-center/internal/service"
	"dispatch-center/internal/tasks"
)

// WorkerServer wraps the asynq server that processes background tasks:
// audit persistence and the periodic queue refresh.
type WorkerServer struct {
	server      *asynq.Server
	log         *logrus.Entry
	auditRepo   repository.AuditRepository
	sessionRepo repository.QueueSessionRepository
	broadcaster service.Broadcaster
}

// NewWorkerServer creates a WorkerServer.
func NewWorkerServer(
	redisOpt asynq.RedisClientOpt,
	auditRepo repository.AuditRepository,
	sessionRepo repository.QueueSessionRepository,
	broadcaster service.Broadcaster,
	logger *logrus.Logger,
) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:      server,
		log:         logEntry,
		auditRepo:   auditRepo,
		sessionRepo: sessionRepo,
		broadcaster: broadcaster,
	}
}

// Start runs the worker server. It should be called in its own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeAuditPersist, NewAuditPersistHandler(ws.auditRepo).ProcessTask)
	mux.HandleFunc(tasks.TypeQueueRefresh, NewQueueRefreshHandler(ws.sessionRepo, ws.broadcaster).ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped")
		}
	}
}

// Shutdown gracefully stops the worker server.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete")
}
