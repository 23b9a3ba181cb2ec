package testing

import (
	"context"
	"errors"
	"sync"

	"github.com/rileyhilliard/radarmon/pkg/sshutil"
)

// Dialer hands out a prepared sequence of clients, one per dial.
// Once the sequence is exhausted every further dial returns Err.
type Dialer struct {
	mu      sync.Mutex
	clients []*MockClient
	errs    []error
	dials   int

	// Err is returned after the scripted sequence runs out. Nil means the
	// last client is reused.
	Err error
}

// NewDialer creates a Dialer that returns clients in order.
func NewDialer(clients ...*MockClient) *Dialer {
	return &Dialer{clients: clients}
}

// FailNext queues a dial failure ahead of the remaining clients.
func (d *Dialer) FailNext(err error) *Dialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
	return d
}

// Dial returns the next scripted client or error.
func (d *Dialer) Dial(ctx context.Context) (sshutil.SSHClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++

	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	if len(d.clients) == 0 {
		if d.Err == nil {
			return nil, errors.New("no mock clients scripted")
		}
		return nil, d.Err
	}
	c := d.clients[0]
	if len(d.clients) > 1 || d.Err != nil {
		d.clients = d.clients[1:]
	}
	return c, nil
}

// Dials returns how many times Dial was called.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
