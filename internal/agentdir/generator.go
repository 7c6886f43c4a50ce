// Package agentdir is a stand-in for the external agent directory used in
// development. It serves generated agents over the same REST shape and
// randomly moves them between presence states.
package agentdir

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/google/uuid"
)

// Status is a custom presence reason offered by the directory
type Status struct {
	ID     string
	Name   string
	Weight int
	Reason types.Reason // ReasonCustom leaves the id out of generated allow-lists
}

// DefaultStatuses are the custom statuses the generated agents pick from when
// they go unavailable
var DefaultStatuses = []Status{
	{ID: "st-break", Name: "Pausa", Weight: 35, Reason: types.ReasonBreak},
	{ID: "st-lunch", Name: "Almoço", Weight: 20, Reason: types.ReasonLunch},
	{ID: "st-meeting", Name: "Reunião", Weight: 15, Reason: types.ReasonMeeting},
	{ID: "st-feedback", Name: "Feedback", Weight: 10, Reason: types.ReasonFeedback},
	{ID: "st-training", Name: "Treinamento", Weight: 10, Reason: types.ReasonTraining},
	{ID: "st-backoffice", Name: "Backoffice", Weight: 8, Reason: types.ReasonBackoffice},
	{ID: "st-other", Name: "Outro", Weight: 2, Reason: types.ReasonCustom},
}

// DefaultRoles are the directory role ids assigned to generated agents
var DefaultRoles = []string{"role-agent", "role-senior", "role-supervisor"}

var (
	firstNames = []string{
		"Ana", "Bruno", "Carla", "Diego", "Eduarda", "Felipe", "Gabriela", "Henrique",
		"Isabela", "João", "Larissa", "Marcos", "Natália", "Otávio", "Paula", "Rafael",
		"Sofia", "Thiago", "Vanessa", "Yuri",
	}
	lastNames = []string{
		"Almeida", "Barbosa", "Costa", "Dias", "Ferreira", "Gomes", "Lima", "Martins",
		"Nunes", "Oliveira", "Pereira", "Ribeiro", "Santos", "Souza", "Teixeira",
	}
)

// Generator creates fake directory agents
type Generator struct {
	rng   *rand.Rand
	roles []string
}

// NewGenerator creates a new agent generator. The same seed yields the same agents.
func NewGenerator(seed int64, roles []string) *Generator {
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		roles: roles,
	}
}

// GenerateAgents creates count logged-out agents
func (g *Generator) GenerateAgents(count int) []types.Agent {
	// Distribution: 80% agents, 15% seniors, 5% supervisors
	roleWeights := []int{80, 15, 5}

	agents := make([]types.Agent, count)
	for i := range agents {
		first := firstNames[g.rng.Intn(len(firstNames))]
		last := lastNames[g.rng.Intn(len(lastNames))]

		id, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			id = uuid.New()
		}

		agents[i] = types.Agent{
			ID:                 id.String(),
			FirstName:          first,
			LastName:           last,
			Email:              emailFor(first, last, i),
			RoleID:             g.roles[weightedIndex(g.rng, roleWeights, len(g.roles))],
			AvailabilityStatus: types.AvailabilityUnavailable,
			LoginStatus:        false,
		}
	}
	return agents
}

// pickStatus selects a custom status by weight
func pickStatus(rng *rand.Rand, statuses []Status) Status {
	weights := make([]int, len(statuses))
	for i, s := range statuses {
		weights[i] = s.Weight
	}
	return statuses[weightedIndex(rng, weights, len(statuses))]
}

// weightedIndex selects an index below n based on weights. Missing weights count as 1.
func weightedIndex(rng *rand.Rand, weights []int, n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += weightAt(weights, i)
	}
	if total <= 0 {
		return rng.Intn(n)
	}

	choice := rng.Intn(total)
	cumulative := 0
	for i := 0; i < n; i++ {
		cumulative += weightAt(weights, i)
		if choice < cumulative {
			return i
		}
	}
	return 0
}

func weightAt(weights []int, i int) int {
	if i < len(weights) {
		return weights[i]
	}
	return 1
}

func emailFor(first, last string, index int) string {
	local := strings.ToLower(fold(first) + "." + fold(last))
	return fmt.Sprintf("%s.%d@example.com", local, index+1)
}

var accents = strings.NewReplacer(
	"á", "a", "ã", "a", "â", "a", "é", "e", "ê", "e", "í", "i",
	"ó", "o", "ô", "o", "õ", "o", "ú", "u", "ç", "c",
)

func fold(s string) string {
	return accents.Replace(s)
}
