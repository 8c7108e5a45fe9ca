package playback

import "sync"

// ListQueue is a fixed-order in-memory track queue. It satisfies TrackQueue
// and additionally supports stepping backwards, which the media session
// needs for its previous-track action. Safe for concurrent use.
type ListQueue struct {
	mu     sync.Mutex
	tracks []*Track
	index  int
}

// NewListQueue builds a queue positioned at the first track.
func NewListQueue(tracks []*Track) *ListQueue {
	return &ListQueue{tracks: tracks}
}

// Current returns the track at the queue position, nil once the queue is
// exhausted or empty.
func (q *ListQueue) Current() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index >= len(q.tracks) {
		return nil
	}
	return q.tracks[q.index]
}

// PeekNext returns the upcoming track without consuming it.
func (q *ListQueue) PeekNext() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index+1 >= len(q.tracks) {
		return nil
	}
	return q.tracks[q.index+1]
}

// Advance moves forward and returns the new current track, nil at queue end.
func (q *ListQueue) Advance() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index >= len(q.tracks) {
		return nil
	}
	q.index++
	if q.index >= len(q.tracks) {
		return nil
	}
	return q.tracks[q.index]
}

// Previous moves backward and returns the new current track. Returns nil
// when already at the first track.
func (q *ListQueue) Previous() *Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index == 0 {
		return nil
	}
	// Stepping back from past-the-end lands on the last track
	q.index--
	return q.tracks[q.index]
}

// Len returns the total number of tracks in the queue.
func (q *ListQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}
