package rating

// Kind classifies a ledger entry. Exactly one kind applies to every match.
type Kind string

const (
	KindNormal   Kind = "normal"
	KindWalkover Kind = "walkover"
	KindNull     Kind = "null"
)

// Side identifies a participant slot on a match
type Side int

const (
	Side1 Side = 1
	Side2 Side = 2
)

// Result is the outcome from one participant's point of view
type Result string

const (
	ResultWin  Result = "win"
	ResultDraw Result = "draw"
	ResultLoss Result = "loss"
	ResultNone Result = "none"
)

// Facts are the editable inputs of a match
type Facts struct {
	Goals1  int
	Goals2  int
	Absent1 bool
	Absent2 bool
}

// Classify derives the match kind from the absence flags
func Classify(f Facts) Kind {
	switch {
	case f.Absent1 && f.Absent2:
		return KindNull
	case f.Absent1 || f.Absent2:
		return KindWalkover
	default:
		return KindNormal
	}
}

// Outcome is the fully evaluated effect of a match on both participants
type Outcome struct {
	Facts   Facts
	Kind    Kind
	IsDraw  bool
	Winner  Side // 0 when there is no winner
	Before1 int
	Before2 int
	After1  int
	After2  int
}

// Delta1 is the effective (post-clamp) change for side 1
func (o Outcome) Delta1() int { return o.After1 - o.Before1 }

// Delta2 is the effective (post-clamp) change for side 2
func (o Outcome) Delta2() int { return o.After2 - o.Before2 }

// Result returns the result for the given side
func (o Outcome) Result(s Side) Result {
	switch {
	case o.Kind == KindNull:
		return ResultNone
	case o.IsDraw:
		return ResultDraw
	case o.Winner == s:
		return ResultWin
	default:
		return ResultLoss
	}
}

// Evaluate classifies the match and computes clamped after ratings
func Evaluate(before1, before2 int, f Facts) Outcome {
	o := Outcome{
		Facts:   f,
		Kind:    Classify(f),
		Before1: before1,
		Before2: before2,
	}

	switch o.Kind {
	case KindWalkover:
		if f.Absent1 {
			o.Winner = Side2
		} else {
			o.Winner = Side1
		}
	case KindNormal:
		switch {
		case f.Goals1 > f.Goals2:
			o.Winner = Side1
		case f.Goals2 > f.Goals1:
			o.Winner = Side2
		default:
			o.IsDraw = true
		}
	}

	d1, d2 := EnhancedChange(before1, before2, f.Goals1, f.Goals2, f.Absent1, f.Absent2)
	o.After1 = ApplyDelta(before1, d1)
	o.After2 = ApplyDelta(before2, d2)
	return o
}

// GoldenGlovePoints scores goalkeeping performance. It never feeds the rating.
func GoldenGlovePoints(scored, conceded int, result Result) int {
	points := 0
	switch conceded {
	case 0:
		points += 3
	case 1:
		points++
	}
	if result == ResultWin {
		points++
		if scored-conceded >= 3 {
			points++
		}
	}
	return points
}
