package rating

// Counters are the cumulative statistics kept per player and per
// (player, tournament). Column names match the GORM models embedding it.
type Counters struct {
	MatchesPlayed     int `gorm:"not null;default:0" json:"matches_played"`
	Wins              int `gorm:"not null;default:0" json:"wins"`
	Draws             int `gorm:"not null;default:0" json:"draws"`
	Losses            int `gorm:"not null;default:0" json:"losses"`
	GoalsFor          int `gorm:"not null;default:0" json:"goals_for"`
	GoalsAgainst      int `gorm:"not null;default:0" json:"goals_against"`
	CleanSheets       int `gorm:"not null;default:0" json:"clean_sheets"`
	GoldenGlovePoints int `gorm:"not null;default:0" json:"golden_glove_points"`
}

// Add returns c + d
func (c Counters) Add(d Counters) Counters {
	return Counters{
		MatchesPlayed:     c.MatchesPlayed + d.MatchesPlayed,
		Wins:              c.Wins + d.Wins,
		Draws:             c.Draws + d.Draws,
		Losses:            c.Losses + d.Losses,
		GoalsFor:          c.GoalsFor + d.GoalsFor,
		GoalsAgainst:      c.GoalsAgainst + d.GoalsAgainst,
		CleanSheets:       c.CleanSheets + d.CleanSheets,
		GoldenGlovePoints: c.GoldenGlovePoints + d.GoldenGlovePoints,
	}
}

// Sub returns c - d. The result may be invalid; check with Valid.
func (c Counters) Sub(d Counters) Counters {
	return Counters{
		MatchesPlayed:     c.MatchesPlayed - d.MatchesPlayed,
		Wins:              c.Wins - d.Wins,
		Draws:             c.Draws - d.Draws,
		Losses:            c.Losses - d.Losses,
		GoalsFor:          c.GoalsFor - d.GoalsFor,
		GoalsAgainst:      c.GoalsAgainst - d.GoalsAgainst,
		CleanSheets:       c.CleanSheets - d.CleanSheets,
		GoldenGlovePoints: c.GoldenGlovePoints - d.GoldenGlovePoints,
	}
}

// Valid reports whether no counter is negative
func (c Counters) Valid() bool {
	return c.MatchesPlayed >= 0 && c.Wins >= 0 && c.Draws >= 0 && c.Losses >= 0 &&
		c.GoalsFor >= 0 && c.GoalsAgainst >= 0 && c.CleanSheets >= 0 && c.GoldenGlovePoints >= 0
}

// Contribution is exactly what recording the outcome adds to one side's counters.
// Null matches contribute nothing. Walkovers count the game and the result only.
func Contribution(o Outcome, s Side) Counters {
	switch o.Kind {
	case KindNull:
		return Counters{}

	case KindWalkover:
		c := Counters{MatchesPlayed: 1}
		if o.Winner == s {
			c.Wins = 1
		} else {
			c.Losses = 1
		}
		return c
	}

	scored, conceded := o.Facts.Goals1, o.Facts.Goals2
	if s == Side2 {
		scored, conceded = conceded, scored
	}

	result := o.Result(s)
	c := Counters{
		MatchesPlayed:     1,
		GoalsFor:          scored,
		GoalsAgainst:      conceded,
		GoldenGlovePoints: GoldenGlovePoints(scored, conceded, result),
	}
	switch result {
	case ResultWin:
		c.Wins = 1
	case ResultDraw:
		c.Draws = 1
	case ResultLoss:
		c.Losses = 1
	}
	if conceded == 0 {
		c.CleanSheets = 1
	}
	return c
}
