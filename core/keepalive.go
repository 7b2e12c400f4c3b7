package harness

import (
	"log"
	"sync"
	"time"
)

// Keepalive sends application-level pings so the agent session does not idle
// out between slow turns. It only ever writes; frames are left to the turn
// detector.
type Keepalive struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartKeepalive pings sess every interval until stopped or until a ping
// fails. Non-positive intervals fall back to DefaultKeepaliveInterval.
func StartKeepalive(sess *Session, interval time.Duration) *Keepalive {
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}

	k := &Keepalive{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(k.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-k.stop:
				return
			case <-ticker.C:
				if !sess.IsOpen() {
					return
				}
				if err := sess.Ping(); err != nil {
					log.Println("Keepalive ping failed:", err)
					return
				}
			}
		}
	}()

	return k
}

// Stop ends the ping loop and waits for it to exit. Safe to call more than
// once and from multiple goroutines.
func (k *Keepalive) Stop() {
	k.stopOnce.Do(func() { close(k.stop) })
	<-k.done
}
