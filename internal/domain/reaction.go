package domain

// Reaction is a live reaction flag a participant can raise or clear.
type Reaction string

const (
	ReactionRaisedHand  Reaction = "raisedHand"
	ReactionClapping    Reaction = "clapping"
	ReactionLaughing    Reaction = "laughing"
	ReactionAngry       Reaction = "angry"
	ReactionIndifferent Reaction = "indifferent"
	ReactionHappy       Reaction = "happy"
	ReactionAgreeing    Reaction = "agreeing"
	ReactionDisagreeing Reaction = "disagreeing"
)

var knownReactions = map[Reaction]struct{}{
	ReactionRaisedHand:  {},
	ReactionClapping:    {},
	ReactionLaughing:    {},
	ReactionAngry:       {},
	ReactionIndifferent: {},
	ReactionHappy:       {},
	ReactionAgreeing:    {},
	ReactionDisagreeing: {},
}

func (r Reaction) Valid() bool {
	_, ok := knownReactions[r]
	return ok
}
