package issuer

import (
	"context"
	"esn/src/db"
	"esn/src/lib"
	"esn/src/mailer"
	"esn/src/models"
	"esn/src/tickets"
	"esn/src/types"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
)

const (
	queueSize   = 64
	maxAttempts = 3
	claimTTL    = 24 * time.Hour
	sweepEvery  = 10 * time.Minute
	sweepMaxAge = 48 * time.Hour
)

// Job asks for one ticket to be generated and mailed. The pair of request id
// and payment id forms the idempotency key, so a redelivered gateway webhook
// enqueuing the same job again sends nothing twice.
type Job struct {
	RequestID uint
	PaymentID string
}

// Issuer runs ticket generation and email delivery as a queued follow-up to
// the payment state commit, decoupled from the callback request/response
// cycle. Failures are retried in place and, past that, picked up again by
// the sweeper; the payment state is never touched.
type Issuer struct {
	jobs  chan Job
	rd    *redis.Client
	comp  *tickets.Compositor
	sched gocron.Scheduler
	done  chan struct{}
	wg    sync.WaitGroup
}

func New(rd *redis.Client) *Issuer {
	return &Issuer{
		jobs: make(chan Job, queueSize),
		rd:   rd,
		comp: tickets.NewCompositor(),
		done: make(chan struct{}),
	}
}

var issuer *Issuer

func GetIssuer() *Issuer {
	if issuer != nil {
		return issuer
	}
	issuer = New(lib.GetRedisClient())
	return issuer
}

// NewIssuer Replace the singleton with a custom instance
func NewIssuer(i *Issuer) *Issuer {
	issuer = i
	return issuer
}

func (i *Issuer) Start() {
	i.wg.Add(1)
	go i.run()
}

func (i *Issuer) run() {
	defer i.wg.Done()
	for {
		select {
		case j := <-i.jobs:
			i.process(context.Background(), j)
		case <-i.done:
			return
		}
	}
}

// Enqueue hands a job to the worker without blocking the caller. A full
// queue is not an error, the sweeper re-discovers the request later.
func (i *Issuer) Enqueue(j Job) bool {
	select {
	case i.jobs <- j:
		return true
	default:
		log.Printf("[issuer] Queue full, leaving request %d for the sweeper\n", j.RequestID)
		return false
	}
}

// Pending reports queued jobs not yet picked up by the worker.
func (i *Issuer) Pending() int {
	return len(i.jobs)
}

func claimKey(requestId uint, paymentId string) string {
	return fmt.Sprintf("ticket-issued:%d:%s", requestId, paymentId)
}

func (i *Issuer) process(ctx context.Context, j Job) {
	key := claimKey(j.RequestID, j.PaymentID)
	claimed, err := i.rd.SetNX(ctx, key, time.Now().Format(time.RFC3339), claimTTL).Result()
	if err != nil {
		log.Printf("[issuer] Error claiming job %s, proceeding without dedupe: %s\n", key, err.Error())
	} else if !claimed {
		log.Printf("[issuer] Ticket for request %d already issued, skipping\n", j.RequestID)
		return
	}

	d := db.GetDb()
	var req models.TicketRequest
	if err := d.
		Model(&models.TicketRequest{}).
		Where("id = ?", j.RequestID).
		First(&req).
		Error; err != nil {
		log.Printf("[issuer] Error loading request %d: %s\n", j.RequestID, err.Error())
		i.release(ctx, key)
		return
	}
	if req.PaymentStatus != types.PAYMENT_PAID {
		log.Printf("[issuer] Request %d is %s, not issuing\n", req.ID, req.PaymentStatus)
		i.release(ctx, key)
		return
	}

	var ev models.Event
	if err := d.
		Model(&models.Event{}).
		Where("title = ?", req.EventName).
		First(&ev).
		Error; err != nil {
		log.Printf("[issuer] No event named %q for request %d, skipping ticket generation\n", req.EventName, req.ID)
		return
	}
	if ev.TicketTemplate == nil || *ev.TicketTemplate == "" {
		log.Printf("[issuer] Event %q has no ticket template, skipping ticket generation\n", ev.Title)
		return
	}
	fields, err := ev.Fields()
	if err != nil {
		log.Printf("[issuer] Invalid field layout on event %q: %s\n", ev.Title, err.Error())
		i.release(ctx, key)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * 2 * time.Second)
		}
		png, err := i.comp.Render(&req, &ev, fields)
		if err != nil {
			log.Printf("[issuer] Render attempt %d for request %d failed: %s\n", attempt, req.ID, err.Error())
			continue
		}
		res := mailer.SendTicketEmail(&mailer.TicketEmailInput{
			To:    req.Email,
			Name:  req.Name,
			Png:   png,
			Event: &ev,
		})
		if res.OK {
			log.Printf("[issuer] Ticket for request %d sent to %s (%s)\n", req.ID, req.Email, res.MessageID)
			return
		}
		log.Printf("[issuer] Delivery attempt %d for request %d failed: %s\n", attempt, req.ID, res.Err)
	}
	// give the claim back so the sweeper can retry once the cause clears
	i.release(ctx, key)
}

func (i *Issuer) release(ctx context.Context, key string) {
	if err := i.rd.Del(ctx, key).Err(); err != nil {
		log.Printf("[issuer] Error releasing claim %s: %s\n", key, err.Error())
	}
}

// StartSweeper schedules the recovery pass: paid requests whose claim key is
// absent (crash after commit, full queue, exhausted retries) get re-enqueued.
func (i *Issuer) StartSweeper() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(i.Sweep),
	); err != nil {
		return err
	}
	sched.Start()
	i.sched = sched
	return nil
}

func (i *Issuer) Sweep() {
	ctx := context.Background()
	d := db.GetDb()
	var reqs []models.TicketRequest
	if err := d.
		Model(&models.TicketRequest{}).
		Where("payment_status = ? AND updated_at > ?", types.PAYMENT_PAID, time.Now().Add(-sweepMaxAge)).
		Find(&reqs).
		Error; err != nil {
		log.Printf("[issuer] Sweep query failed: %s\n", err.Error())
		return
	}
	for _, req := range reqs {
		paymentId := paymentIdOf(&req)
		n, err := i.rd.Exists(ctx, claimKey(req.ID, paymentId)).Result()
		if err != nil {
			log.Printf("[issuer] Sweep could not check claim for request %d: %s\n", req.ID, err.Error())
			continue
		}
		if n == 0 {
			log.Printf("[issuer] Sweep re-enqueueing unissued request %d\n", req.ID)
			i.Enqueue(Job{RequestID: req.ID, PaymentID: paymentId})
		}
	}
}

func paymentIdOf(req *models.TicketRequest) string {
	if req.Pidx != nil && *req.Pidx != "" {
		return *req.Pidx
	}
	if req.TransactionID != nil {
		return *req.TransactionID
	}
	return ""
}

func (i *Issuer) Close() {
	close(i.done)
	i.wg.Wait()
	if i.sched != nil {
		if err := i.sched.Shutdown(); err != nil {
			log.Printf("[issuer] Error shutting down sweeper: %s\n", err.Error())
		}
	}
}
