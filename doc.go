/*
Package leadflow is a lead-qualification engine: a multi-section, conditionally
branching questionnaire that turns a respondent's answers into a 0-100 fitness
score, a tier (cold, warm, hot, qualified), a ranked list of service verticals,
recommendations and next steps.

It separates the static catalog (questions, weights, branch rules) from the
per-session state (flow position, responses, contact) and from side-effects
(snapshot persistence, lead submission, report delivery).

# Concept

Every operation is a synchronous reaction to one event (Begin, Answer, Advance,
Retreat). The engine reduces the event over the session, mirrors the result to a
snapshot store, and returns a View describing what to render next. Advancing
past the last question builds the lead profile once and submits it in the
background; the result is available immediately through the returned View.

# Key Features

  - Deterministic Scoring: the same answers always yield the same score, tier and verticals.
  - Forward-only Branching: branch targets are validated when the catalog is compiled.
  - Resumable Sessions: snapshots younger than the restore window are resumed with Resume.
  - Non-blocking Failures: persistence problems surface as Notices with a manual contact fallback.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/leadflow"
		"github.com/aretw0/leadflow/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		eng := leadflow.New(nil) // embedded diagnostic catalog, in-memory store
		defer eng.Close(ctx)

		view, err := eng.Begin(ctx, "", domain.Contact{Name: "Ana", Email: "ana@example.com"})
		if err != nil {
			log.Fatal(err)
		}

		for view.Phase == domain.PhaseQuestionnaire {
			q := view.Question
			if _, err := eng.Answer(ctx, view.SessionID, q.ID, []string{q.Options[0].ID}); err != nil {
				log.Fatal(err)
			}
			if view, err = eng.Advance(ctx, view.SessionID); err != nil {
				log.Fatal(err)
			}
		}

		log.Printf("score=%d tier=%s", view.Result.Profile.Score, view.Result.Profile.Tier)
	}
*/
package leadflow
