package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/scheduler"
	"github.com/openshelf/openshelf/internal/tasks"
)

// TasksController exposes the background maintenance surface: triggering
// the storage reconciliation sweep and checking task status. Admin only.
type TasksController struct {
	taskClient *tasks.Client
	scheduler  *scheduler.ReconcileScheduler
}

func NewTasksController(taskClient *tasks.Client, sched *scheduler.ReconcileScheduler) *TasksController {
	return &TasksController{taskClient: taskClient, scheduler: sched}
}

// RunReconcile enqueues a reconciliation sweep immediately, outside the
// cron schedule.
func (tc *TasksController) RunReconcile(c *gin.Context) {
	ids, err := tc.taskClient.Add(tasks.ReconcileStorageTask{}).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue reconcile")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_ids": ids})
}

// Status reports scheduler state and the next scheduled sweep.
func (tc *TasksController) Status(c *gin.Context) {
	resp := gin.H{"scheduler_running": false}
	if tc.scheduler != nil {
		resp["scheduler_running"] = tc.scheduler.IsRunning()
		if next := tc.scheduler.GetNextRunTime(); next != nil {
			resp["next_run"] = next
		}
	}
	c.JSON(http.StatusOK, resp)
}

// TaskStatus returns the state of one queued task.
func (tc *TasksController) TaskStatus(c *gin.Context) {
	status, err := tc.taskClient.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondNotFound(c, "task")
		return
	}
	c.JSON(http.StatusOK, status)
}
