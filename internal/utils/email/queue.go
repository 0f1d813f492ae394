package email

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const queueCapacity = 256

// Deliverer sends a single message
type Deliverer interface {
	Send(msg Message) error
}

// Queue decouples email delivery from the request path. Enqueue never
// blocks; a background dispatcher retries failed sends, and messages that
// exhaust their attempts land in a dead-letter list that a cron schedule
// periodically redelivers.
type Queue struct {
	sender      Deliverer
	logger      *logrus.Logger
	jobs        chan Message
	maxAttempts int
	cron        *cron.Cron
	retrySpec   string
	quit        chan struct{}
	wg          sync.WaitGroup

	// RetryDelay is the pause between attempts for the same message.
	RetryDelay time.Duration

	mu   sync.Mutex
	dead []Message
}

// NewQueue creates an outbound email queue. retrySpec is a cron expression
// controlling how often dead letters are retried.
func NewQueue(sender Deliverer, logger *logrus.Logger, maxAttempts int, retrySpec string) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{
		sender:      sender,
		logger:      logger,
		jobs:        make(chan Message, queueCapacity),
		maxAttempts: maxAttempts,
		retrySpec:   retrySpec,
		quit:        make(chan struct{}),
		RetryDelay:  2 * time.Second,
	}
}

// Start launches the dispatcher and the dead-letter redelivery schedule
func (q *Queue) Start() error {
	q.cron = cron.New()
	if _, err := q.cron.AddFunc(q.retrySpec, q.RedeliverDeadLetters); err != nil {
		return err
	}
	q.cron.Start()

	q.wg.Add(1)
	go q.dispatch()
	return nil
}

// Stop halts the dispatcher. Messages still in flight are dead-lettered by
// the dispatcher before it exits.
func (q *Queue) Stop() {
	if q.cron != nil {
		q.cron.Stop()
	}
	close(q.quit)
	q.wg.Wait()
}

// Enqueue hands a message to the queue without blocking. If the queue is
// full the message goes straight to the dead-letter list.
func (q *Queue) Enqueue(msg Message) {
	select {
	case q.jobs <- msg:
	default:
		q.logger.Warnf("Email queue full, dead-lettering message to %s", msg.To)
		q.deadLetter(msg)
	}
}

// DeadLetters returns a snapshot of messages awaiting redelivery
func (q *Queue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.dead))
	copy(out, q.dead)
	return out
}

// RedeliverDeadLetters moves dead letters back onto the queue with a fresh
// attempt budget
func (q *Queue) RedeliverDeadLetters() {
	q.mu.Lock()
	pending := q.dead
	q.dead = nil
	q.mu.Unlock()

	for _, msg := range pending {
		msg.Attempts = 0
		q.Enqueue(msg)
	}
	if len(pending) > 0 {
		q.logger.Infof("Re-enqueued %d dead-lettered emails", len(pending))
	}
}

func (q *Queue) dispatch() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case msg := <-q.jobs:
			q.deliver(msg)
		}
	}
}

func (q *Queue) deliver(msg Message) {
	for {
		err := q.sender.Send(msg)
		if err == nil {
			return
		}

		msg.Attempts++
		q.logger.Errorf("Failed to send email to %s (attempt %d/%d): %v",
			msg.To, msg.Attempts, q.maxAttempts, err)
		if msg.Attempts >= q.maxAttempts {
			q.deadLetter(msg)
			return
		}

		select {
		case <-q.quit:
			q.deadLetter(msg)
			return
		case <-time.After(q.RetryDelay):
		}
	}
}

func (q *Queue) deadLetter(msg Message) {
	q.mu.Lock()
	q.dead = append(q.dead, msg)
	q.mu.Unlock()
	q.logger.Warnf("Email to %s dead-lettered after %d attempts", msg.To, msg.Attempts)
}
