package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/callwright/callwright/core/wire"
)

// AwaitTurn waits for the agent's next complete turn on the session's frame
// stream.
//
// A complete turn is the first Final frame with non-empty text, resolved
// after the settle window has passed so trailing audio and controls land in
// the same turn. If the ceiling elapses first, the best buffered frame
// stands in as the reply; a session-terminating control as the very first
// frame ends the wait immediately.
func (s *Session) AwaitTurn(policy TurnPolicy) Outcome {
	return awaitTurn(s.frames, policy, s.Err)
}

func awaitTurn(frames <-chan wire.Frame, policy TurnPolicy, sessionErr func() error) Outcome {
	policy = policy.withDefaults()
	started := time.Now()
	deadline := time.After(policy.Timeout)

	var (
		buffer   []wire.Frame
		resolved wire.Frame
		settle   <-chan time.Time
	)

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				// A stream that dies after the turn already resolved does
				// not invalidate the reply.
				if resolved != nil {
					return Outcome{
						Status:  StatusResolved,
						Reply:   resolved,
						Text:    wire.Text(resolved),
						Frames:  buffer,
						Elapsed: time.Since(started),
					}
				}
				err := errors.New("session receive stream ended")
				if sessionErr != nil {
					if sessErr := sessionErr(); sessErr != nil {
						err = sessErr
					}
				}
				return Outcome{
					Status:  StatusError,
					Frames:  buffer,
					Err:     err,
					Elapsed: time.Since(started),
				}
			}

			if len(buffer) == 0 && wire.IsTerminal(frame) {
				control := frame.(wire.Control)
				return Outcome{
					Status:    StatusSessionClosed,
					Frames:    []wire.Frame{frame},
					CloseKind: control.Kind,
					Err:       fmt.Errorf("session closed by server: %s", control.Kind),
					Elapsed:   time.Since(started),
				}
			}

			buffer = append(buffer, frame)

			if resolved == nil {
				if final, ok := frame.(wire.Final); ok && final.Text != "" {
					resolved = frame
					settle = time.After(policy.SettleDelay)
				}
			}

		case <-settle:
			return Outcome{
				Status:  StatusResolved,
				Reply:   resolved,
				Text:    wire.Text(resolved),
				Frames:  buffer,
				Elapsed: time.Since(started),
			}

		case <-deadline:
			if len(buffer) == 0 {
				return Outcome{
					Status:  StatusTimedOutEmpty,
					Frames:  buffer,
					Elapsed: time.Since(started),
				}
			}

			best := bestFrame(buffer)
			return Outcome{
				Status:  StatusTimedOutPartial,
				Reply:   best,
				Text:    wire.Text(best),
				Frames:  buffer,
				Elapsed: time.Since(started),
			}
		}
	}
}

// bestFrame picks the reply standing in for an incomplete turn: the first
// complete text, else the first non-empty fragment, else the first frame of
// any kind.
func bestFrame(frames []wire.Frame) wire.Frame {
	for _, frame := range frames {
		if final, ok := frame.(wire.Final); ok && final.Text != "" {
			return frame
		}
	}
	for _, frame := range frames {
		if delta, ok := frame.(wire.Delta); ok && delta.Text != "" {
			return frame
		}
	}
	if len(frames) > 0 {
		return frames[0]
	}
	return nil
}
