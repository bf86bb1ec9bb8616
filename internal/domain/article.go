package domain

// Article is one entry returned by the article-listing service for a scope.
type Article struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Scope string `json:"scope"`
}
