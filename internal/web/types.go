package web

type DisplayPlayer struct {
	ID       string
	IsHost   bool
	IsViewer bool
}

// DisplayEntry is an entry as shown on the board. Content that does not
// match the template shape is shown raw.
type DisplayEntry struct {
	PlayerID string
	Template string
	ImageURL string
	Texts    []string
	Raw      string
}

type DisplayScore struct {
	Label string
	Score int
}

type DisplayState struct {
	SessionID   string
	ViewerID    string
	Status      string
	PhaseToken  int64
	PhaseEndsAt string
	RoundLabel  string
	StageTitle  string
	StageStatus string
	Entry       *DisplayEntry
	Players     []DisplayPlayer
	Scores      []DisplayScore
	ShowScores  bool
	ShowFinal   bool
}
