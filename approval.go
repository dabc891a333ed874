package mcup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MutationClass is the approval gate's classification of an outgoing call.
type MutationClass int

const (
	// NonMutating calls bypass the gate entirely: no prompt, no added latency.
	NonMutating MutationClass = iota
	// Mutating calls are suspended until an external verdict arrives.
	Mutating
)

// String returns the class name for logs.
func (m MutationClass) String() string {
	if m == Mutating {
		return "mutating"
	}
	return "non-mutating"
}

// Classifier decides whether an outgoing call is state-changing and therefore
// subject to approval. Classify must be a pure function of its inputs.
type Classifier interface {
	Classify(name string, args map[string]interface{}) MutationClass
}

// defaultMutationKeywords are the verb substrings that mark a tool name as
// mutating.
var defaultMutationKeywords = []string{"write", "delete", "update", "create", "modify"}

// KeywordClassifier classifies a tool as Mutating when its name contains any
// of Keywords as a case-insensitive substring. Names listed in Allow are
// exempt regardless of keyword matches, which is the escape hatch for false
// positives like "overwrite-safe" matching "write".
type KeywordClassifier struct {
	Keywords []string
	Allow    []string
}

// NewKeywordClassifier returns a classifier with the default keyword set
// {write, delete, update, create, modify} and an empty allow list.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Keywords: defaultMutationKeywords}
}

// Classify implements Classifier. Arguments are ignored; the heuristic is
// purely name-based.
func (c *KeywordClassifier) Classify(name string, _ map[string]interface{}) MutationClass {
	lower := strings.ToLower(name)
	for _, allowed := range c.Allow {
		if lower == strings.ToLower(allowed) {
			return NonMutating
		}
	}
	for _, keyword := range c.Keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return Mutating
		}
	}
	return NonMutating
}

// ApprovalRequest is a snapshot of a gated call presented for a decision.
type ApprovalRequest struct {
	// Method is the tool name being invoked.
	Method string `json:"method"`
	// Params is the arguments payload at the time of the call.
	Params json.RawMessage `json:"params"`
}

// Verdict is the outcome of an approval decision.
type Verdict struct {
	Approved bool
}

// Approver produces a verdict for a gated call. Decide suspends only the
// calling goroutine, never the session read loop, until a verdict is
// available. Replacement strategies (policy engines, remote approval
// services) implement the same contract.
type Approver interface {
	Decide(ctx context.Context, req ApprovalRequest) (Verdict, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (Verdict, error)

// Decide implements Approver.
func (f ApproverFunc) Decide(ctx context.Context, req ApprovalRequest) (Verdict, error) {
	return f(ctx, req)
}

// AutoApprover returns an Approver that always produces the same verdict.
// Useful for tests and for "auto-approve"/"auto-deny" policy modes.
func AutoApprover(approved bool) Approver {
	return ApproverFunc(func(context.Context, ApprovalRequest) (Verdict, error) {
		return Verdict{Approved: approved}, nil
	})
}

// ConsoleApprover prompts on a text interface and parses a y/n reply.
// Anything that is not an affirmative or negative answer is re-prompted,
// never silently defaulted.
type ConsoleApprover struct {
	In  io.Reader
	Out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
}

// Decide implements Approver. Prompts are serialized so two concurrent gated
// calls cannot interleave their questions on the console.
func (a *ConsoleApprover) Decide(ctx context.Context, req ApprovalRequest) (Verdict, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reader == nil {
		a.reader = bufio.NewReader(a.In)
	}

	details, err := json.Marshal(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("render approval details: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Verdict{}, err
		}

		if _, err := fmt.Fprintf(a.Out, "Approve call? Details: %s (y/n): ", details); err != nil {
			return Verdict{}, fmt.Errorf("write approval prompt: %w", err)
		}

		line, err := a.reader.ReadString('\n')
		if err != nil && line == "" {
			return Verdict{}, fmt.Errorf("read approval reply: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return Verdict{Approved: true}, nil
		case "n", "no":
			return Verdict{Approved: false}, nil
		}
		// Unrecognized reply, ask again.
	}
}
