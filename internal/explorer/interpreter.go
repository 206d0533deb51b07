package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// Action is the resolved meaning of a user utterance.
type Action string

const (
	ActionLearnMore Action = "learn_more"
	ActionNext      Action = "next"
	ActionOther     Action = "other"
)

// Decision is the result of classifying one utterance. Response carries the
// assistant's spoken reply for ActionOther; it is empty otherwise.
type Decision struct {
	Action   Action
	Response string
}

// Classifier resolves utterances the local rules cannot. The card kind is
// passed so the classifier can phrase clue-specific replies.
type Classifier interface {
	Classify(ctx context.Context, input string, cardKind types.CardKind) (Decision, error)
}

// localRules maps substrings to actions. Checked before any remote call:
// the common commands must work instantly and offline.
var localRules = []struct {
	substr string
	action Action
}{
	{"learn more", ActionLearnMore},
	{"tell me more", ActionLearnMore},
	{"next clue", ActionNext},
	{"see next clue", ActionNext},
	{"visit next", ActionNext},
	{"next landmark", ActionNext},
}

// Interpreter turns free-form user input into actions against the adventure
// store. Interpretation is two-stage: cheap substring rules first, then the
// remote classifier for anything the rules do not cover.
type Interpreter struct {
	logger     *slog.Logger
	store      *Store
	classifier Classifier
}

func NewInterpreter(store *Store, classifier Classifier, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		logger:     logger,
		store:      store,
		classifier: classifier,
	}
}

// Interpret resolves input to a Decision and applies navigation side effects
// to the store. ActionNext advances the active card; at the last card it is
// a no-op and the decision still reports ActionNext.
func (i *Interpreter) Interpret(ctx context.Context, input string) (Decision, error) {
	decision, matched := matchLocal(input)
	if !matched {
		card, ok := i.store.ActiveCard()
		if !ok {
			return Decision{}, fmt.Errorf("no active adventure card")
		}
		var err error
		decision, err = i.classifier.Classify(ctx, input, card.Kind)
		if err != nil {
			return Decision{}, fmt.Errorf("classify input: %w", err)
		}
	}

	if decision.Action == ActionNext {
		if !i.store.Advance() {
			i.logger.Debug("Advance requested at last card, ignoring")
		}
	}
	return decision, nil
}

func matchLocal(input string) (Decision, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, rule := range localRules {
		if strings.Contains(normalized, rule.substr) {
			return Decision{Action: rule.action}, true
		}
	}
	return Decision{}, false
}
