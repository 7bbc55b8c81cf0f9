package pipeline

import (
	"strings"
	"time"
)

const silenceCheckInterval = 200 * time.Millisecond

// silenceWatch decides when the speaker has finished an utterance. It
// compares the time since the last final transcript fragment against a
// threshold, using a shorter one when the transcript reads as a
// question. Questions end speech more abruptly than statements.
//
// The watch fires at most once; Reset re-arms it for the next capture.
type silenceWatch struct {
	threshold         time.Duration
	questionThreshold time.Duration
	fired             bool
}

func newSilenceWatch(threshold, questionThreshold time.Duration) *silenceWatch {
	return &silenceWatch{
		threshold:         threshold,
		questionThreshold: questionThreshold,
	}
}

func (w *silenceWatch) Reset() {
	w.fired = false
}

// Check reports whether the utterance ended as of now. transcript is
// the accumulated transcript so far and lastFinal the arrival time of
// its newest final fragment. Empty transcripts never fire: silence
// before any speech is not an utterance boundary.
func (w *silenceWatch) Check(transcript string, lastFinal time.Time, now time.Time) bool {
	if w.fired {
		return false
	}
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" || lastFinal.IsZero() {
		return false
	}

	threshold := w.threshold
	if strings.HasSuffix(trimmed, "?") {
		threshold = w.questionThreshold
	}
	if now.Sub(lastFinal) < threshold {
		return false
	}
	w.fired = true
	return true
}
