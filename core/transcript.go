package harness

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is one logged line of the conversation.
type TranscriptEntry struct {
	ID      string
	Speaker string
	Text    string
	At      time.Time
}

// TranscriptLog is an append-only record of the session, mirrored to a file
// as it grows. Safe for concurrent use.
type TranscriptLog struct {
	path string

	mu      sync.Mutex
	entries []TranscriptEntry
	file    *os.File
}

// NewTranscriptLog opens conversation_history_<id>_<ts>.txt under dir and
// writes the header. A file error disables mirroring; the in-memory log
// keeps working.
func NewTranscriptLog(dir, conversationID string) *TranscriptLog {
	started := time.Now()
	name := fmt.Sprintf("conversation_history_%s_%s.txt", conversationID, sanitizeTimestamp(started))
	t := &TranscriptLog{path: filepath.Join(dir, name)}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Println("Failed to create transcript directory:", err)
		return t
	}
	file, err := os.Create(t.path)
	if err != nil {
		log.Println("Failed to create transcript file:", err)
		return t
	}
	t.file = file

	header := fmt.Sprintf(
		"Conversation History\nConversation ID: %s\nStarted: %s\n%s\n\n",
		conversationID, started.Format(time.RFC3339), strings.Repeat("=", 50),
	)
	if _, err := file.WriteString(header); err != nil {
		log.Println("Failed to write transcript header:", err)
	}

	return t
}

// sanitizeTimestamp makes a timestamp usable inside a file name.
func sanitizeTimestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.Format(time.RFC3339))
}

// Log appends an entry and mirrors it to the transcript file. Write errors
// never interrupt the conversation.
func (t *TranscriptLog) Log(speaker, text string) {
	entry := TranscriptEntry{
		ID:      uuid.NewString(),
		Speaker: speaker,
		Text:    text,
		At:      time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, entry)

	if t.file == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s: %s\n\n", entry.At.Format(time.RFC3339), speaker, text)
	if _, err := t.file.WriteString(line); err != nil {
		log.Println("Failed to write transcript entry:", err)
	}
}

// Entries returns a copy of everything logged so far.
func (t *TranscriptLog) Entries() []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]TranscriptEntry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

// Render returns the conversation as plain "Speaker: text" lines, the form
// handed to the judge.
func (t *TranscriptLog) Render() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	for i, entry := range t.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(entry.Speaker)
		b.WriteString(": ")
		b.WriteString(entry.Text)
	}
	return b.String()
}

// Path returns the transcript file location.
func (t *TranscriptLog) Path() string { return t.path }

// Close closes the transcript file. Further entries stay in memory only.
func (t *TranscriptLog) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return
	}
	if err := t.file.Close(); err != nil {
		log.Println("Failed to close transcript file:", err)
	}
	t.file = nil
}
