package resolution

import "context"

// FixedPrompter answers every conflict with the same kind. It is meant for
// unattended runs, so it only supports KindKeep and KindIgnore; a fixed
// unify target makes no sense across different CUITs.
type FixedPrompter struct {
	Kind Kind
}

func (p FixedPrompter) Decide(_ context.Context, _ Conflict) (Decision, error) {
	return Decision{Kind: p.Kind}, nil
}
