package kiosk

import (
	"context"
	"time"
)

// Poller probes for an assigned patient while the session has none. It runs independently of
// the socket so a kiosk that missed patient_assigned still picks the patient up.
type Poller struct {
	session  *Session
	interval time.Duration
}

func NewPoller(session *Session, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{session: session, interval: interval}
}

// Run probes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.session.log.Info("starting patient poller", "interval", p.interval)
	p.Probe(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.session.log.Info("stopping patient poller")
			return
		case <-timer.C:
			p.Probe(ctx)
			timer.Reset(p.interval)
		}
	}
}

// Probe reloads the session if it has no patient. Any failure means no patient yet.
func (p *Poller) Probe(ctx context.Context) {
	if p.session.State() != StateNoPatient {
		return
	}
	if err := p.session.Reload(ctx); err != nil {
		p.session.log.Debug("no patient yet", "err", err)
	}
}
