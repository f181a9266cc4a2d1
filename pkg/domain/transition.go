package domain

// Transition is a branch rule: selecting OptionID on FromQuestionID moves the
// flow to ToQuestionID instead of the next question in catalog order.
//
// Transitions are extracted from option data when a catalog is compiled and
// validated against the flattened question list, so the flow never interprets
// raw option pointers while traversing.
type Transition struct {
	FromQuestionID string `json:"from" yaml:"from"`
	OptionID       string `json:"option" yaml:"option"`
	ToQuestionID   string `json:"to" yaml:"to"`
}
