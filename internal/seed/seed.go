// Package seed generates demo contacts.
package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/Napageneral/bubble/internal/contact"
)

// Count is how many contacts Generate returns.
const Count = 20

var TagPool = []string{"Family", "Work", "Friends", "Urgent", "Gym", "Clients"}

var firstNames = []string{
	"Alice", "Bob", "Carol", "David", "Eve", "Frank", "Grace", "Heidi", "Ivan", "Judy",
	"Kevin", "Laura", "Mallory", "Niaj", "Olivia", "Peggy", "Quentin", "Rupert", "Sybil", "Trent",
}

var lastNames = []string{
	"Johnson", "Smith", "Williams", "Brown", "Davis", "Miller", "Wilson", "Moore", "Taylor", "Anderson",
	"Thomas", "Jackson", "White", "Harris", "Martin", "Thompson", "Garcia", "Martinez", "Robinson", "Clark",
}

// Generate returns Count demo contacts. The first three always carry every
// tag, exactly one tag and no tags, so all tag match grades show up. r may
// be nil.
func Generate(r *rand.Rand) []contact.Contact {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	now := contact.NowMillis()
	out := make([]contact.Contact, 0, Count)
	for i := 0; i < Count; i++ {
		first := firstNames[i%len(firstNames)]
		last := lastNames[i%len(lastNames)]
		out = append(out, contact.Contact{
			ID:        uuid.NewString(),
			FirstName: first,
			LastName:  last,
			Phone:     fmt.Sprintf("555-%d", 1000000+r.IntN(9000000)),
			Email:     strings.ToLower(first) + "." + strings.ToLower(last) + "@example.com",
			Tags:      randomTags(r),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	out[0].Tags = append([]string{}, TagPool...)
	out[1].Tags = []string{TagPool[0]}
	out[2].Tags = []string{}
	return out
}

func randomTags(r *rand.Rand) []string {
	shuffled := append([]string{}, TagPool...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:1+r.IntN(len(shuffled))]
}
