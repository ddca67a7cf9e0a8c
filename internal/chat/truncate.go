package chat

const (
	// ResponseBudget is the hard maximum rune count for outgoing bot text.
	ResponseBudget = 300

	// truncateFloor is the lowest index considered when looking for a
	// sentence boundary to cut at.
	truncateFloor = 250

	// hardCutIndex is where the text is cut when no sentence boundary
	// exists in the scan window.
	hardCutIndex = 297
)

// Truncate enforces the response budget on model output. Text at or under
// the budget is returned unchanged. Longer text is cut at the rune index
// just past the last sentence-ending character found scanning backward from
// hardCutIndex to truncateFloor, or hard-cut at hardCutIndex when the window
// contains none. The scan is a greedy backward pass over a fixed window, not
// general sentence segmentation; it trades linguistic nuance for a
// predictable output length.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= ResponseBudget {
		return text
	}

	cut := hardCutIndex
	for i := hardCutIndex; i >= truncateFloor; i-- {
		if isSentenceEnd(runes[i]) {
			cut = i + 1
			break
		}
	}

	return string(runes[:cut])
}

// isSentenceEnd reports whether r terminates a sentence. The set covers
// ASCII terminators plus their fullwidth forms; Korean sentences in practice
// end with one of these.
func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
