package urlhandler

// Target is a URL to probe. Original keeps the input as the user wrote it.
type Target struct {
	Original string
	URL      string
}
