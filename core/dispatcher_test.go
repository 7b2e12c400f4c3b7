package harness

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/callwright/callwright/core/wire"
	"github.com/gorilla/websocket"
)

// quickTurns keeps test turns snappy without changing the detector's shape.
var quickTurns = TurnPolicy{Timeout: time.Second, SettleDelay: 20 * time.Millisecond}

// replyingAgent answers the greeting and every stimulus, text or binary, with
// the next scripted reply. Messages read from the harness are echoed on the
// returned channel.
func replyingAgent(t *testing.T, replies []string) (string, <-chan clientMessage) {
	t.Helper()

	messages := make(chan clientMessage, 64)
	endpoint := startAgent(t, func(conn *websocket.Conn, _ *http.Request) {
		next := 0
		for {
			msg, err := readClientMessage(conn)
			if err != nil {
				return
			}
			messages <- msg

			isStimulus := msg.Type == wire.TypeText || len(msg.Binary) > 0
			if !isStimulus {
				continue
			}
			if next < len(replies) {
				if err := writeAgentFinal(conn, replies[next]); err != nil {
					return
				}
				next++
			}
		}
	})
	return endpoint, messages
}

func TestDispatchPlaysStepsInOrder(t *testing.T) {
	endpoint, _ := replyingAgent(t, []string{"Hello, who is this?", "Your appointment is confirmed."})

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	transcript := NewTranscriptLog(t.TempDir(), "conv-1")
	defer transcript.Close()

	items := []StimulusItem{
		{Step: 1, Utterance: "Hi, this is Ana.", Text: "Hi, this is Ana."},
		{Step: 2, Utterance: "Please confirm my appointment.", Text: "Please confirm my appointment."},
	}
	results := Dispatch(context.Background(), sess, items,
		WithTurnPolicy(quickTurns),
		WithStepDelay(time.Millisecond),
		WithTranscript(transcript),
	)

	if len(results) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(results))
	}
	for i, result := range results {
		if !result.Success() {
			t.Fatalf("unexpected step %d failure: %+v", i+1, result.Err)
		}
		if result.Step != i+1 {
			t.Errorf("unexpected step number: %+v", result)
		}
		if result.Outcome.Status != StatusResolved {
			t.Errorf("expected a resolved turn for step %d, got %+v", i+1, result.Outcome)
		}
	}
	if results[0].Outcome.Text != "Hello, who is this?" {
		t.Errorf("unexpected first reply: %q", results[0].Outcome.Text)
	}
	if results[1].Outcome.Text != "Your appointment is confirmed." {
		t.Errorf("unexpected second reply: %q", results[1].Outcome.Text)
	}

	rendered := transcript.Render()
	want := "User: Hi, this is Ana.\nAgent: Hello, who is this?\nUser: Please confirm my appointment.\nAgent: Your appointment is confirmed."
	if rendered != want {
		t.Fatalf("unexpected transcript:\n%s", rendered)
	}
}

func TestDispatchSendsAudioStimuli(t *testing.T) {
	endpoint, messages := replyingAgent(t, []string{"Got your recording."})

	audioPath := filepath.Join(t.TempDir(), "step_1.wav")
	payload := []byte("RIFFxxxxWAVE-stimulus")
	if err := os.WriteFile(audioPath, payload, 0o644); err != nil {
		t.Fatalf("unexpected error writing stimulus: %+v", err)
	}

	sess, err := Connect(context.Background(), endpoint, "token", ModeVoice, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	items := []StimulusItem{{Step: 1, Utterance: "recorded stimulus", AudioPath: audioPath}}
	results := Dispatch(context.Background(), sess, items, WithTurnPolicy(quickTurns))

	if len(results) != 1 || !results[0].Success() {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].AudioBytes != len(payload) {
		t.Fatalf("unexpected audio byte count: %d", results[0].AudioBytes)
	}

	if msg := expectClientMessage(t, messages); msg.Type != wire.TypeSessionGreeting {
		t.Fatalf("expected the greeting first, got %+v", msg)
	}
	msg := expectClientMessage(t, messages)
	if string(msg.Binary) != string(payload) {
		t.Fatalf("unexpected binary stimulus: %+v", msg)
	}
}

func TestDispatchFailedStimulusFailsOnlyItsStep(t *testing.T) {
	endpoint, _ := replyingAgent(t, []string{"Still here."})

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	cause := errors.New("synthesis exploded")
	items := []StimulusItem{
		{Step: 1, Utterance: "broken", Err: cause},
		{Step: 2, Utterance: "fine", Text: "fine"},
	}
	results := Dispatch(context.Background(), sess, items,
		WithTurnPolicy(quickTurns),
		WithStepDelay(time.Millisecond),
	)

	if len(results) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(results))
	}
	if results[0].Success() || !errors.Is(results[0].Err, cause) {
		t.Fatalf("expected the first step to carry its stimulus error, got %+v", results[0].Err)
	}
	if !strings.Contains(results[0].Err.Error(), "stimulus unavailable for step 1") {
		t.Fatalf("unexpected error text: %v", results[0].Err)
	}
	if !results[1].Success() || results[1].Outcome.Text != "Still here." {
		t.Fatalf("expected the second step to proceed, got %+v", results[1])
	}
}

func TestDispatchMissingAudioFileFailsStep(t *testing.T) {
	endpoint, _ := replyingAgent(t, nil)

	sess, err := Connect(context.Background(), endpoint, "token", ModeVoice, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	items := []StimulusItem{{Step: 1, Utterance: "gone", AudioPath: filepath.Join(t.TempDir(), "missing.wav")}}
	results := Dispatch(context.Background(), sess, items, WithTurnPolicy(quickTurns))

	if len(results) != 1 || results[0].Success() {
		t.Fatalf("expected a failed step, got %+v", results)
	}
	if !strings.Contains(results[0].Err.Error(), "failed to read stimulus audio for step 1") {
		t.Fatalf("unexpected error text: %v", results[0].Err)
	}
}

func TestDispatchAbortsWhenSessionCloses(t *testing.T) {
	endpoint := startAgent(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			msg, err := readClientMessage(conn)
			if err != nil {
				return
			}
			if msg.Type == wire.TypeText {
				if err := writeAgentFinal(conn, "First and last reply."); err != nil {
					return
				}
				return
			}
		}
	})

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	items := []StimulusItem{
		{Step: 1, Utterance: "first", Text: "first"},
		{Step: 2, Utterance: "second", Text: "second"},
	}
	results := Dispatch(context.Background(), sess, items,
		WithTurnPolicy(quickTurns),
		WithStepDelay(100*time.Millisecond),
	)

	if len(results) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(results))
	}
	if !results[0].Success() || results[0].Outcome.Text != "First and last reply." {
		t.Fatalf("unexpected first step: %+v", results[0])
	}
	if results[1].Success() || !errors.Is(results[1].Err, ErrSessionClosed) {
		t.Fatalf("expected the second step aborted, got %+v", results[1].Err)
	}
	if !strings.Contains(results[1].Err.Error(), "step 2 not sent") {
		t.Fatalf("unexpected error text: %v", results[1].Err)
	}
}

type fakeRecognizer struct {
	text  string
	err   error
	heard []byte
}

func (r *fakeRecognizer) Transcribe(_ context.Context, audio []byte) (string, error) {
	r.heard = append([]byte(nil), audio...)
	return r.text, r.err
}

func TestDispatchTranscribesAudioOnlyReply(t *testing.T) {
	endpoint := startAgent(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			msg, err := readClientMessage(conn)
			if err != nil {
				return
			}
			if msg.Type == wire.TypeText {
				if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2}); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, []byte{3}); err != nil {
					return
				}
			}
		}
	})

	sess, err := Connect(context.Background(), endpoint, "token", ModeVoice, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	transcript := NewTranscriptLog(t.TempDir(), "conv-2")
	defer transcript.Close()
	recognizer := &fakeRecognizer{text: "I heard you loud and clear."}

	items := []StimulusItem{{Step: 1, Utterance: "say something", Text: "say something"}}
	results := Dispatch(context.Background(), sess, items,
		WithTurnPolicy(TurnPolicy{Timeout: 200 * time.Millisecond, SettleDelay: 20 * time.Millisecond}),
		WithTranscript(transcript),
		WithRecognizer(recognizer),
	)

	if len(results) != 1 || !results[0].Success() {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Outcome.Text != "I heard you loud and clear." {
		t.Fatalf("expected the recognized reply text, got %q", results[0].Outcome.Text)
	}
	if string(recognizer.heard) != string([]byte{1, 2, 3}) {
		t.Fatalf("expected concatenated turn audio, got %v", recognizer.heard)
	}
	if !strings.Contains(transcript.Render(), "Agent: I heard you loud and clear.") {
		t.Fatalf("expected the recognized reply in the transcript:\n%s", transcript.Render())
	}
}

func TestDispatchStepCallbackSeesEveryStep(t *testing.T) {
	endpoint, _ := replyingAgent(t, []string{"one", "two"})

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	var observed []int
	items := []StimulusItem{
		{Step: 1, Utterance: "a", Text: "a"},
		{Step: 2, Utterance: "b", Text: "b"},
	}
	Dispatch(context.Background(), sess, items,
		WithTurnPolicy(quickTurns),
		WithStepDelay(time.Millisecond),
		WithStepCallback(func(result StepResult) { observed = append(observed, result.Step) }),
	)

	if len(observed) != 2 || observed[0] != 1 || observed[1] != 2 {
		t.Fatalf("unexpected observed steps: %v", observed)
	}
}
