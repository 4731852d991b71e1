package model

// ManualDependency is a user decision about a missing dependency directory.
// A row with neither SatisfiedBy nor Ignore set does not hide the directory.
type ManualDependency struct {
	AddonDir    string `json:"addon_dir"`
	SatisfiedBy *int64 `json:"satisfied_by"`
	Ignore      bool   `json:"ignore"`
}

// Resolves reports whether the decision removes its directory from the missing set.
func (m ManualDependency) Resolves() bool {
	return m.Ignore || m.SatisfiedBy != nil
}

// UserDecision is the input form of a ManualDependency.
type UserDecision = ManualDependency

// Candidate is a catalog add-on whose directory set contains a missing directory.
type Candidate struct {
	AddonID int64  `json:"addon_id"`
	Name    string `json:"name"`
}

// MissingDependency is a directory required by installed add-ons that no
// installed add-on provides and no decision resolves.
type MissingDependency struct {
	Dir        string      `json:"dir"`
	RequiredBy []string    `json:"required_by"`
	Candidates []Candidate `json:"candidates"`
}
