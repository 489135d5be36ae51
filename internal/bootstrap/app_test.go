package bootstrap

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRegisterPeriodicTasks_SchedulerKeptForShutdown(t *testing.T) {
	app := &App{
		Config:         &Config{RefreshSchedule: "@every 5m"},
		Log:            logrus.New(),
		redisClientOpt: asynq.RedisClientOpt{Addr: "127.0.0.1:6379"},
	}

	app.registerPeriodicTasks()

	assert.NotNil(t, app.AsynqScheduler, "Shutdown needs the scheduler to stop it")
}
