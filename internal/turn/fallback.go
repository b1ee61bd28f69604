package turn

// fallbackOutput stands in for a failed synthesis: no proposal, no updates,
// and only the discussion lines the client has already seen. Building a
// result from it leaves the previous scorecard unchanged and fabricates
// every response from the opinions.
func fallbackOutput(discussion []DiscussionTurn) *synthesisOutput {
	return &synthesisOutput{
		Discussion: discussion,
		Metrics:    Metrics{KeyRisks: []string{}, NextSteps: []string{}},
	}
}
