/*
Package domain contains the core domain models of the lead-qualification engine.

It defines the questionnaire entities, the per-session state mutated by the flow
reducer, and the derived results. The package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Section, Question, Option: the static catalog content.
  - Transition: a branch rule extracted from option data at catalog load.
  - Session: FlowState, Responses and Contact for one respondent.
  - LeadProfile: the immutable result built at the terminal transition.
  - Recommendation, NextStep: the synthesized action plan.
*/
package domain
