package torznab

// Torznab wraps newznab-style RSS with torrent attributes in the
// torznab namespace. The root element is left unbound so both
// <rss> documents and <error code="..."/> responses decode.
type rssResponse struct {
	Channel   rssChannel `xml:"channel"`
	ErrorCode int        `xml:"code,attr"`
	ErrorDesc string     `xml:"description,attr"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title      string        `xml:"title"`
	GUID       string        `xml:"guid"`
	Link       string        `xml:"link"`
	Comments   string        `xml:"comments"`
	Size       int64         `xml:"size"`
	PubDate    string        `xml:"pubDate"`
	Categories []string      `xml:"category"`
	Enclosure  rssEnclosure  `xml:"enclosure"`
	Attrs      []torznabAttr `xml:"http://torznab.com/schemas/2015/feed attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}
