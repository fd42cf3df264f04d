package engine

const thinkSystemPrompt = `You are a research scout working on a standing goal for a user.
You work in small steps. At each step decide exactly one next action and reply
with a single JSON object, nothing else:

  {"action": "search", "query": "<web search query>", "reason": "<one line>"}
  {"action": "read", "url": "<url from earlier search results>", "reason": "<one line>"}
  {"action": "summarize", "reason": "<one line>"}

Rules:
- Search with fresh queries; do not repeat a query you already ran.
- Read only URLs that appeared in your search results and that you have not read yet.
- Choose summarize once you have enough material to answer the goal well.`

const summarizeSystemPrompt = `You are a research scout reporting back to a user.
Write a concise findings summary for the user's standing goal using only the
collected material below. Lead with what is new or actionable. Cite source
URLs inline in parentheses. If the material is thin, say so honestly rather
than padding. Plain text, no markdown headers.`

// decision is the JSON the model returns from a think step.
type decision struct {
	Action string `json:"action"`
	Query  string `json:"query,omitempty"`
	URL    string `json:"url,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const (
	actionSearch    = "search"
	actionRead      = "read"
	actionSummarize = "summarize"
)
