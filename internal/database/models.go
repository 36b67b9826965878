package database

import "time"

// Message kinds as stored in the messages table.
const (
	KindUser = "user"
	KindBot  = "bot"
	KindFile = "file"
)

// Message represents one chat message in a room. The autoincrement ID defines
// the total order of messages within a room; messages are append-only and
// never edited or deleted.
type Message struct {
	ID        uint      `db:"id"         json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`

	Room     string `db:"room"     json:"room"`
	Username string `db:"username" json:"username"`
	Body     string `db:"body"     json:"message"`
	Kind     string `db:"kind"     json:"type"`
}
