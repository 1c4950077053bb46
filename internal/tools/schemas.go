package tools

// SearchArgs is the input schema shared by both search tools.
type SearchArgs struct {
	Query string `json:"query" jsonschema_description:"The search query. JQL for structured_search, plain language for semantic_search."`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum results to return (1-50, default: 10)"`
}
