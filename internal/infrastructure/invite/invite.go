package invite

import (
	"fmt"
	"net/url"
)

// FormatText renders the invite message for a room. Pure formatting, no
// state; the room link mirrors the web client's /room/{roomId} route.
func FormatText(publicURL, roomID string) string {
	roomLink := fmt.Sprintf("%s/room/%s", publicURL, url.PathEscape(roomID))

	return fmt.Sprintf(`Hey!

I found this cool app called SyncStream where we can watch YouTube videos together in real-time.

I've set up a room to watch something. Join me!

Room Link: %s

See you there!`, roomLink)
}
