package channel

import (
	"sort"
	"strings"
)

// Full call recordings are distinguished from per-utterance segments by
// sheer size.
const fullRecordingMinSize = 1000000

// Archive is the raw conversation payload returned by the platform.
type Archive struct {
	Entries []Entry `json:"entries"`
}

type Entry struct {
	ContentType string       `json:"content_type"`
	Content     string       `json:"content"`
	Timetoken   int64        `json:"timetoken"`
	User        EntryUser    `json:"user"`
	Attachments []Attachment `json:"attachments"`
}

type EntryUser struct {
	Phone string `json:"phone"`
}

type Attachment struct {
	Files []File `json:"files"`
}

type File struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Conversation is the processed archive: the cleaned transcript, the full
// call recording if one was attached, and the user audio segments paired
// step by step with the transcript's user lines.
type Conversation struct {
	FullAudioURL string
	Transcript   string
	Steps        []StepAudio
}

// StepAudio is one user utterance from the transcript together with the
// recorded audio segment for it.
type StepAudio struct {
	Step      int
	Utterance string
	AudioURL  string
}

// ProcessConversation extracts the replayable assets from a raw archive.
func ProcessConversation(archive Archive) *Conversation {
	conv := &Conversation{
		Transcript: cleanTranscript(findTranscript(archive.Entries)),
	}
	if recording, ok := findFullRecording(archive.Entries); ok {
		conv.FullAudioURL = recording.URL
	}
	conv.Steps = pairStepAudio(userUtterances(conv.Transcript), userAudioSegments(archive.Entries))
	return conv
}

// findFullRecording returns the first audio entry large enough to be the
// whole call rather than a segment.
func findFullRecording(entries []Entry) (File, bool) {
	for _, entry := range entries {
		if entry.ContentType != "audio" {
			continue
		}
		if file, ok := firstFile(entry); ok && file.Size > fullRecordingMinSize {
			return file, true
		}
	}
	return File{}, false
}

// findTranscript returns the content of the first text entry carrying the
// transcript marker.
func findTranscript(entries []Entry) string {
	for _, entry := range entries {
		if entry.ContentType == "text" && strings.Contains(entry.Content, "*transcript*") {
			return entry.Content
		}
	}
	return ""
}

// cleanTranscript strips system noise, keeping only Agent and User lines.
func cleanTranscript(raw string) string {
	if raw == "" {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Agent: ") || strings.HasPrefix(line, "User: ") {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// userUtterances lists the User lines of a cleaned transcript in order.
func userUtterances(transcript string) []string {
	var utterances []string
	for _, line := range strings.Split(transcript, "\n") {
		if strings.HasPrefix(line, "User: ") {
			utterances = append(utterances, strings.TrimSpace(strings.TrimPrefix(line, "User: ")))
		}
	}
	return utterances
}

type audioSegment struct {
	url       string
	timetoken int64
}

// userAudioSegments collects the per-utterance recordings: audio entries
// attributed to a user phone whose file name marks them as segments, in
// chronological order.
func userAudioSegments(entries []Entry) []audioSegment {
	var segments []audioSegment
	for _, entry := range entries {
		if entry.ContentType != "audio" || entry.User.Phone == "" {
			continue
		}
		file, ok := firstFile(entry)
		if !ok || !strings.Contains(file.Name, "segment") {
			continue
		}
		segments = append(segments, audioSegment{url: file.URL, timetoken: entry.Timetoken})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].timetoken < segments[j].timetoken
	})
	return segments
}

// pairStepAudio matches the k-th user utterance with the k-th audio segment.
// Utterances without a matching segment are dropped, as are surplus segments.
func pairStepAudio(utterances []string, segments []audioSegment) []StepAudio {
	steps := make([]StepAudio, 0, len(utterances))
	for i, utterance := range utterances {
		if i >= len(segments) {
			break
		}
		steps = append(steps, StepAudio{
			Step:      i + 1,
			Utterance: utterance,
			AudioURL:  segments[i].url,
		})
	}
	return steps
}

func firstFile(entry Entry) (File, bool) {
	if len(entry.Attachments) == 0 || len(entry.Attachments[0].Files) == 0 {
		return File{}, false
	}
	return entry.Attachments[0].Files[0], true
}
