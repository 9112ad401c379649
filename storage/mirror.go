package storage

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Replica receives copies of note mutations. It is never read from by the
// service; it exists so that notes survive the loss of the storage directory.
type Replica interface {
	PutNote(name string, text []byte) error
	DeleteNote(name string) error
}

type change struct {
	name    string
	text    []byte
	deleted bool
}

type mirrorOptions struct {
	limit     rate.Limit
	retry     time.Duration
	queueSize int
}

type MirrorOption func(*mirrorOptions)

// WithRate caps the number of replica calls per second. Zero means no cap.
func WithRate(perSecond float64) MirrorOption {
	return func(o *mirrorOptions) {
		if perSecond > 0 {
			o.limit = rate.Limit(perSecond)
		} else {
			o.limit = rate.Inf
		}
	}
}

// WithRetryInterval sets how long to wait before retrying a failed replica
// call.
func WithRetryInterval(d time.Duration) MirrorOption {
	return func(o *mirrorOptions) {
		o.retry = d
	}
}

// WithQueueSize sets how many changes can be pending. Changes arriving while
// the queue is full are not propagated.
func WithQueueSize(n int) MirrorOption {
	return func(o *mirrorOptions) {
		o.queueSize = n
	}
}

// Mirror implements Store wrapping a primary store and a replica. Every
// operation is served by the primary; successful mutations are then copied
// to the replica in the background. Changes to the same name reach the
// replica in the order they were applied to the primary.
type Mirror struct {
	primary Store
	replica Replica
	limiter *rate.Limiter
	retry   time.Duration
	locks   *nameLocks

	mu      sync.RWMutex
	closed  bool
	changes chan change
	closing chan struct{}
	done    chan struct{}
}

func NewMirror(primary Store, replica Replica, opts ...MirrorOption) *Mirror {
	o := mirrorOptions{
		limit:     rate.Inf,
		retry:     time.Second,
		queueSize: 42,
	}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Mirror{
		primary: primary,
		replica: replica,
		limiter: rate.NewLimiter(o.limit, 1),
		retry:   o.retry,
		locks:   newNameLocks(),
		changes: make(chan change, o.queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.writeback()
	return m
}

func (m *Mirror) Get(name string) ([]byte, error) {
	return m.primary.Get(name)
}

func (m *Mirror) List() ([]Note, error) {
	return m.primary.List()
}

func (m *Mirror) Create(name string, text []byte) error {
	unlock := m.locks.lock(name)
	defer unlock()
	if err := m.primary.Create(name, text); err != nil {
		return err
	}
	m.enqueue(change{name: name, text: dup(text)})
	return nil
}

func (m *Mirror) Replace(name string, text []byte) error {
	unlock := m.locks.lock(name)
	defer unlock()
	if err := m.primary.Replace(name, text); err != nil {
		return err
	}
	m.enqueue(change{name: name, text: dup(text)})
	return nil
}

func (m *Mirror) Delete(name string) error {
	unlock := m.locks.lock(name)
	defer unlock()
	if err := m.primary.Delete(name); err != nil {
		return err
	}
	m.enqueue(change{name: name, deleted: true})
	return nil
}

// Close stops accepting changes and waits for the pending ones to be
// propagated. Changes that fail to propagate while closing are given up on.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	close(m.closing)
	close(m.changes)
	m.mu.Unlock()
	<-m.done
}

// enqueue never blocks: mutations have already been applied to the primary
// and must not wait on the replica.
func (m *Mirror) enqueue(c change) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		log.WithField("name", c.name).Warn("Mirror closed, change not propagated")
		return
	}
	select {
	case m.changes <- c:
	default:
		log.WithFields(log.Fields{
			"name":    c.name,
			"deleted": c.deleted,
		}).Warn("Mirror queue full, change not propagated")
	}
}

func (m *Mirror) writeback() {
	defer close(m.done)
	for c := range m.changes {
		m.writeback1(c)
	}
}

func (m *Mirror) writeback1(c change) {
	logger := log.WithFields(log.Fields{
		"name":    c.name,
		"deleted": c.deleted,
	})
	for {
		_ = m.limiter.Wait(context.Background())
		var err error
		if c.deleted {
			err = m.replica.DeleteNote(c.name)
		} else {
			err = m.replica.PutNote(c.name, c.text)
		}
		if err == nil {
			logger.Debug("Propagated to replica")
			return
		}
		logger.WithField("err", err).Warn("Could not propagate to replica")
		select {
		case <-m.closing:
			logger.Warn("Giving up on change while closing")
			return
		case <-time.After(m.retry):
		}
	}
}
