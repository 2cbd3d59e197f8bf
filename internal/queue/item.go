package queue

// PlayState represents the queue's transport intent.
type PlayState string

const (
	StateIdle    PlayState = "idle"
	StatePlaying PlayState = "playing"
	StatePaused  PlayState = "paused"
)

// Item is a playable episode. Identity is ID; display metadata may be
// refreshed but an enqueued item is otherwise immutable.
type Item struct {
	ID           string
	Title        string
	Collection   string
	CollectionID string
	AudioRef     string
	DurationHint float64
	TotalLikes   int64
	TotalPlays   int64
}
