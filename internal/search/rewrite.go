package search

import (
	"regexp"
	"strings"
)

// assigneePattern extracts the assignee a structured query was scoped
// to: assignee = "Jane Doe", assignee == 'Jane', assignee in ("a", "b"),
// or a bare token like assignee = jdoe. Negated clauses (!=) are left
// alone on purpose.
var assigneePattern = regexp.MustCompile(`(?i)\bassignee\s*(?:==|=|~|in)\s*(?:\(\s*"([^"]*)"|\(\s*'([^']*)'|"([^"]*)"|'([^']*)'|([^\s()]+))`)

// orderByPattern drops trailing ORDER BY clauses before rewriting.
var orderByPattern = regexp.MustCompile(`(?i)\border\s+by\b.*$`)

// connectorPattern strips query-language keywords so only meaningful
// terms remain.
var connectorPattern = regexp.MustCompile(`(?i)\b(and|or|not|in|is|empty|null)\b`)

// operatorPattern strips comparison operators and punctuation.
var operatorPattern = regexp.MustCompile(`(?:!=|>=|<=|==|=|~|>|<|\(|\)|,|"|')`)

// Rewrite converts a structured tracker query into plain text suitable
// for embedding and pulls out the assignee the query was scoped to. The
// assignee clause itself is removed from the text because the vector
// lookup applies it as a filter instead.
func Rewrite(query string) (text, assignee string) {
	if m := assigneePattern.FindStringSubmatch(query); m != nil {
		for _, group := range m[1:] {
			if group != "" {
				assignee = strings.TrimSpace(group)
				break
			}
		}
	}

	// Placeholder values cannot be mapped to an index assignee.
	switch strings.ToLower(assignee) {
	case "currentuser", "empty", "null":
		assignee = ""
	}

	text = orderByPattern.ReplaceAllString(query, " ")
	text = assigneePattern.ReplaceAllString(text, " ")
	text = connectorPattern.ReplaceAllString(text, " ")
	text = operatorPattern.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")

	if text == "" {
		if assignee != "" {
			text = "issues assigned to " + assignee
		} else {
			text = strings.TrimSpace(query)
		}
	}
	return text, assignee
}
