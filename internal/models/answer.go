package models

// Answer is the result of a question against the active document. Exactly
// one of Content or Upstream is meaningful: when Upstream is set the model
// call failed and Content is empty.
type Answer struct {
	Question string
	Context  []string
	Content  string
	Upstream *UpstreamError
	// NoDocument is set when nothing was indexed and no lookup was made.
	NoDocument bool
}

// Failed reports whether the completion API call failed.
func (a Answer) Failed() bool { return a.Upstream != nil }

// Text flattens the answer into the string returned to HTTP clients.
func (a Answer) Text() string {
	switch {
	case a.NoDocument:
		return NoDocumentAnswer
	case a.Upstream != nil:
		return upstreamPrefix + a.Upstream.Body
	default:
		return a.Content
	}
}
