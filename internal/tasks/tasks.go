package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/minhhoang-dev/estate_crm_be/internal/models"
	"github.com/minhhoang-dev/estate_crm_be/internal/services/notify"
)

const (
	TypeTaskReminder    = "task:reminder"
	TypePaymentReminder = "booking:payment:reminder"
)

// --- Client (enqueuing) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
	})
}

type taskReminderPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

type paymentReminderPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
}

// EnqueueTaskReminder schedules a reminder for when the task is due.
func EnqueueTaskReminder(client *asynq.Client, taskID uuid.UUID, dueAt time.Time) error {
	payload, err := json.Marshal(taskReminderPayload{TaskID: taskID})
	if err != nil {
		return err
	}
	_, err = client.Enqueue(asynq.NewTask(TypeTaskReminder, payload), asynq.ProcessAt(dueAt))
	return err
}

// EnqueuePaymentReminder schedules a remaining-balance nudge after a deposit.
func EnqueuePaymentReminder(client *asynq.Client, bookingID uuid.UUID, in time.Duration) error {
	payload, err := json.Marshal(paymentReminderPayload{BookingID: bookingID})
	if err != nil {
		return err
	}
	_, err = client.Enqueue(asynq.NewTask(TypePaymentReminder, payload), asynq.ProcessIn(in))
	return err
}

// --- Server (processing) ---

type TaskProcessor struct {
	db       *gorm.DB
	notifier *notify.Service
}

func NewTaskProcessor(db *gorm.DB, notifier *notify.Service) *TaskProcessor {
	return &TaskProcessor{db: db, notifier: notifier}
}

func (p *TaskProcessor) HandleTaskReminder(ctx context.Context, t *asynq.Task) error {
	var payload taskReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bad task reminder payload: %w: %w", err, asynq.SkipRetry)
	}

	var task models.Task
	if err := p.db.First(&task, "id = ?", payload.TaskID).Error; err != nil {
		// deleted since scheduling; nothing to remind about
		return nil
	}
	if task.Status != models.TaskStatusOpen {
		return nil
	}

	_, err := p.notifier.Notify(task.AssigneeID, "task_due", "Task due: "+task.Title, task.Detail)
	return err
}

func (p *TaskProcessor) HandlePaymentReminder(ctx context.Context, t *asynq.Task) error {
	var payload paymentReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bad payment reminder payload: %w: %w", err, asynq.SkipRetry)
	}

	var b models.Booking
	if err := p.db.First(&b, "id = ?", payload.BookingID).Error; err != nil {
		return nil
	}
	if b.Status.Terminal() || !b.PaidAmount.LessThan(b.AgreedPrice) {
		return nil
	}

	remaining := b.AgreedPrice.Sub(b.PaidAmount)
	_, err := p.notifier.Notify(b.CreatedBy, "payment_due",
		"Outstanding balance on booking",
		"Remaining "+remaining.String()+" on booking "+b.ID.String())
	return err
}

// SetupServer wires the processor into an asynq server on the shared Redis.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) *asynq.Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
		},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 5,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("asynq task %s failed: %v", task.Type(), err)
			}),
		},
	)
	return srv
}

func NewMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTaskReminder, processor.HandleTaskReminder)
	mux.HandleFunc(TypePaymentReminder, processor.HandlePaymentReminder)
	return mux
}
