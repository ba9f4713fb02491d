package loadgen

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/okian/examintel/internal/domain/gap"
)

// catalog lists the subjects and topics synthetic students rate.
var catalog = []struct {
	subject string
	topics  []string
}{
	{"Data Structures", []string{"Trees", "Graphs", "Hashing", "Heaps", "Sorting"}},
	{"Operating Systems", []string{"Paging", "Scheduling", "Deadlocks", "File Systems"}},
	{"Computer Networks", []string{"Routing", "TCP", "Subnetting", "DNS"}},
	{"Database Systems", []string{"Normalization", "Transactions", "Indexing", "SQL"}},
	{"Discrete Mathematics", []string{"Graph Theory", "Combinatorics", "Logic", "Relations"}},
}

// Generate builds n assessments. Ids are prefixed with prefix and numbered,
// so two runs with the same prefix collide on purpose.
func Generate(n int, seed uint64, prefix string) []Request {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Request, n)
	for i := range out {
		out[i] = generateOne(rng, prefix+"-"+strconv.Itoa(i))
	}
	return out
}

func generateOne(rng *rand.Rand, id string) Request {
	subjects := 1 + rng.IntN(3)
	perm := rng.Perm(len(catalog))[:subjects]

	var answers []gap.Answer
	for _, ci := range perm {
		c := catalog[ci]
		before := len(answers)
		for _, t := range c.topics {
			// Students skip some topics; the rest get a rating on the 0..5 scale.
			if rng.IntN(3) == 0 {
				continue
			}
			answers = append(answers, gap.Answer{
				Subject:    c.subject,
				Topic:      t,
				Confidence: float64(rng.IntN(11)) / 2,
			})
		}
		if len(answers) == before {
			answers = append(answers, gap.Answer{Subject: c.subject, Topic: c.topics[0], Confidence: 2})
		}
	}

	days := 3 + rng.IntN(12)
	return Request{
		ID:         id,
		Answers:    answers,
		Days:       days,
		TotalHours: math.Round(float64(days)*(1+rng.Float64()*4)*2) / 2,
	}
}
