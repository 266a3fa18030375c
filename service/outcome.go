package service

import (
	"math"
	"math/rand"
	"time"

	"quiz-battle/models"
)

// missedAnswer ответ по умолчанию для игрока, не успевшего ответить
var missedAnswer = models.AnswerRecord{Elapsed: time.Duration(math.MaxInt64), Correct: false}

// roundOutcome решение по раунду для двух игроков
type roundOutcome struct {
	WinnerID string
	LoserID  string
	Critical bool
	Draw     bool
	Damage   int
}

// decideRound определяет победителя раунда по двум ответам
func decideRound(first, second string, answers map[string]models.AnswerRecord, cfg *BattleConfig, rng *rand.Rand) roundOutcome {
	a, ok := answers[first]
	if !ok {
		a = missedAnswer
	}
	b, ok := answers[second]
	if !ok {
		b = missedAnswer
	}

	switch {
	case a.Correct && b.Correct:
		if a.Elapsed == b.Elapsed {
			return roundOutcome{Draw: true}
		}
		winner, loser := first, second
		if b.Elapsed < a.Elapsed {
			winner, loser = second, first
		}
		return roundOutcome{WinnerID: winner, LoserID: loser, Damage: rollDamage(rng, cfg.NormalDamage)}
	case a.Correct:
		return roundOutcome{WinnerID: first, LoserID: second, Critical: true, Damage: rollDamage(rng, cfg.CriticalDamage)}
	case b.Correct:
		return roundOutcome{WinnerID: second, LoserID: first, Critical: true, Damage: rollDamage(rng, cfg.CriticalDamage)}
	default:
		return roundOutcome{Draw: true}
	}
}

func rollDamage(rng *rand.Rand, r DamageRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// roundMessage короткий текст для игрока по итогам раунда
func roundMessage(out roundOutcome, userID string, answer models.AnswerRecord, answered bool) string {
	switch {
	case out.Draw:
		return "Nobody scored this round."
	case userID == out.WinnerID && out.Critical:
		return "Critical hit!"
	case userID == out.WinnerID:
		return "You answered faster!"
	case !answered:
		return "Too slow!"
	case !answer.Correct:
		return "Wrong answer!"
	default:
		return "Your opponent was faster."
	}
}
