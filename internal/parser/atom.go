// Package parser decodes PubSubHubbub notifications from YouTube.
package parser

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vispark/vispark-api/internal/errs"
)

// AtomFeed represents a YouTube Atom feed notification.
// YouTube uses the Atom 1.0 format with custom YouTube namespaces.
type AtomFeed struct {
	XMLName   xml.Name      `xml:"http://www.w3.org/2005/Atom feed"`
	Entry     *AtomEntry    `xml:"entry"`
	Tombstone *DeletedEntry `xml:"http://purl.org/atompub/tombstones/1.0 deleted-entry"`
	Deleted   *DeletedEntry `xml:"http://www.youtube.com/xml/schemas/2015 deleted-entry"`
}

// AtomEntry represents a video entry in the Atom feed.
type AtomEntry struct {
	VideoID   string     `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	ChannelID string     `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	Title     string     `xml:"title"`
	Link      AtomLink   `xml:"link"`
	Author    AtomAuthor `xml:"author"`
	Published time.Time  `xml:"published"`
	Updated   time.Time  `xml:"updated"`
}

// AtomLink represents a link element in the Atom feed.
type AtomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// AtomAuthor is the channel that published the entry.
type AtomAuthor struct {
	Name string `xml:"name"`
	URI  string `xml:"uri"`
}

// DeletedEntry represents a deleted video notification.
type DeletedEntry struct {
	Ref  string     `xml:"ref,attr"`
	When time.Time  `xml:"when,attr"`
	By   AtomAuthor `xml:"by"`
}

// VideoData contains the parsed video information from an Atom feed.
type VideoData struct {
	VideoID     string
	ChannelID   string
	Title       string
	AuthorName  string
	VideoURL    string
	PublishedAt time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
}

// ParseAtomFeed parses a YouTube Atom feed XML and extracts video information.
// Deleted entries carry only the video and channel ids when present.
// Errors wrap errs.ErrInvalidInput.
func ParseAtomFeed(rawXML string) (*VideoData, error) {
	var feed AtomFeed
	if err := xml.Unmarshal([]byte(rawXML), &feed); err != nil {
		return nil, fmt.Errorf("%w: unmarshal atom feed: %v", errs.ErrInvalidInput, err)
	}

	if del := firstDeleted(feed.Tombstone, feed.Deleted); del != nil {
		return &VideoData{
			VideoID:   strings.TrimPrefix(strings.TrimSpace(del.Ref), "yt:video:"),
			ChannelID: channelFromURI(del.By.URI),
			UpdatedAt: del.When,
			IsDeleted: true,
		}, nil
	}

	if feed.Entry == nil {
		return nil, fmt.Errorf("%w: atom feed missing entry element", errs.ErrInvalidInput)
	}

	entry := feed.Entry
	videoID := strings.TrimSpace(entry.VideoID)
	channelID := strings.TrimSpace(entry.ChannelID)
	if channelID == "" {
		channelID = channelFromURI(entry.Author.URI)
	}
	title := strings.TrimSpace(entry.Title)

	if videoID == "" {
		return nil, fmt.Errorf("%w: atom entry missing video ID", errs.ErrInvalidInput)
	}
	if channelID == "" {
		return nil, fmt.Errorf("%w: atom entry missing channel ID", errs.ErrInvalidInput)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: atom entry missing title", errs.ErrInvalidInput)
	}

	videoURL := strings.TrimSpace(entry.Link.Href)
	if videoURL == "" {
		videoURL = "https://www.youtube.com/watch?v=" + videoID
	}

	return &VideoData{
		VideoID:     videoID,
		ChannelID:   channelID,
		Title:       title,
		AuthorName:  strings.TrimSpace(entry.Author.Name),
		VideoURL:    videoURL,
		PublishedAt: entry.Published,
		UpdatedAt:   entry.Updated,
	}, nil
}

func firstDeleted(entries ...*DeletedEntry) *DeletedEntry {
	for _, e := range entries {
		if e != nil {
			return e
		}
	}
	return nil
}

// channelFromURI extracts UC... from https://www.youtube.com/channel/UC...
func channelFromURI(uri string) string {
	uri = strings.TrimSpace(uri)
	const marker = "/channel/"
	i := strings.Index(uri, marker)
	if i < 0 {
		return ""
	}
	id := uri[i+len(marker):]
	if j := strings.IndexAny(id, "/?#"); j >= 0 {
		id = id[:j]
	}
	return id
}

// ChannelIDFromTopic returns the channel_id query parameter of a hub topic URL.
func ChannelIDFromTopic(topic string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(topic))
	if err != nil {
		return "", fmt.Errorf("%w: invalid topic url: %v", errs.ErrInvalidInput, err)
	}
	id := u.Query().Get("channel_id")
	if id == "" {
		return "", fmt.Errorf("%w: topic has no channel_id", errs.ErrInvalidInput)
	}
	return id, nil
}
