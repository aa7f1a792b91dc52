package feed

import "encoding/xml"

// XML namespaces used by channel feeds
const (
	NamespaceAtom    = "http://www.w3.org/2005/Atom"
	NamespaceYouTube = "http://www.youtube.com/xml/schemas/2015"
)

// Document is the decoded Atom feed of one channel
type Document struct {
	XMLName   xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	ID        string   `xml:"id"`
	ChannelID string   `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	Title     string   `xml:"title"`
	Author    Author   `xml:"author"`
	Entries   []Entry  `xml:"entry"`
}

// Author is the feed or entry author
type Author struct {
	Name string `xml:"name"`
	URI  string `xml:"uri"`
}

// Entry is one <entry> element. Timestamps stay raw so the parser can
// report malformed values as parse errors.
type Entry struct {
	ID        string `xml:"id"`
	VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	Title     string `xml:"title"`
	Links     []Link `xml:"link"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

// Link is an Atom <link rel href>
type Link struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// AlternateHref returns the rel="alternate" link, or the first link when no
// relation is marked.
func (e *Entry) AlternateHref() string {
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	for _, l := range e.Links {
		if l.Rel == "" && l.Href != "" {
			return l.Href
		}
	}
	return ""
}
