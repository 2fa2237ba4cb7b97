package news

import "fmt"

// Item is one article ready for publication.
type Item struct {
	SourceKey   string
	Category    string
	Title       string
	ImageURL    string
	ArticleText string   // normalized and length-limited
	Tags        []string // listing order, duplicates removed
	ArticleURL  string
}

// Status tells apart "published something", "nothing new" and "could not check".
type Status int

const (
	StatusNone Status = iota
	StatusSome
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSome:
		return "some"
	case StatusNone:
		return "none"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one parser run.
type Result struct {
	Status  Status
	Item    *Item
	Caption string
	// Reason explains a None result
	Reason string
	// Err is set for Failed results
	Err error
}

// Some wraps a new item and its caption.
func Some(item Item, caption string) Result {
	return Result{Status: StatusSome, Item: &item, Caption: caption}
}

// None reports that there is nothing new to publish.
func None(reason string) Result {
	return Result{Status: StatusNone, Reason: reason}
}

// Failed reports that the source could not be checked.
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}
