package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"gopkg.in/yaml.v3"
)

// AllowList is the static set of directory roles and agents the dashboard tracks,
// plus the mapping of opaque directory status ids to presence reasons.
type AllowList struct {
	roles   map[string]bool
	agents  map[string]bool
	Reasons types.ReasonTable
}

type allowListFile struct {
	Roles   []string          `yaml:"roles"`
	Agents  []string          `yaml:"agents"`
	Reasons map[string]string `yaml:"reasons"`
}

// NewAllowList builds an allow-list from explicit sets
func NewAllowList(roles, agents []string, reasons types.ReasonTable) *AllowList {
	a := &AllowList{
		roles:   make(map[string]bool, len(roles)),
		agents:  make(map[string]bool, len(agents)),
		Reasons: reasons,
	}
	for _, r := range roles {
		a.roles[r] = true
	}
	for _, id := range agents {
		a.agents[id] = true
	}
	if a.Reasons == nil {
		a.Reasons = types.ReasonTable{}
	}
	return a
}

// LoadAllowList reads the allow-list YAML file. A missing file yields an empty
// allow-list; the bool result reports whether the file existed.
func LoadAllowList(path string) (*AllowList, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewAllowList(nil, nil, nil), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read allow-list: %w", err)
	}
	return parseAllowList(data)
}

func parseAllowList(data []byte) (*AllowList, bool, error) {
	var file allowListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, true, fmt.Errorf("failed to parse allow-list: %w", err)
	}

	reasons := make(types.ReasonTable, len(file.Reasons))
	for id, name := range file.Reasons {
		r, err := types.ParseReason(name)
		if err != nil {
			return nil, true, fmt.Errorf("allow-list reason %s: %w", id, err)
		}
		reasons[id] = r
	}
	return NewAllowList(file.Roles, file.Agents, reasons), true, nil
}

// Allows reports whether an agent is tracked, by individual id or by role
func (a *AllowList) Allows(agent types.Agent) bool {
	return a.agents[agent.ID] || (agent.RoleID != "" && a.roles[agent.RoleID])
}

// AllowsID reports whether the agent id itself is allow-listed
func (a *AllowList) AllowsID(id string) bool {
	return a.agents[id]
}

// Filter keeps the allowed agents, preserving order
func (a *AllowList) Filter(agents []types.Agent) []types.Agent {
	filtered := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		if a.Allows(agent) {
			filtered = append(filtered, agent)
		}
	}
	return filtered
}

// FilterIDs keeps the agents whose id is allow-listed, preserving order
func (a *AllowList) FilterIDs(agents []types.Agent) []types.Agent {
	filtered := make([]types.Agent, 0, len(agents))
	for _, agent := range agents {
		if a.agents[agent.ID] {
			filtered = append(filtered, agent)
		}
	}
	return filtered
}

// Size returns the number of allow-listed roles and agents
func (a *AllowList) Size() (roles, agents int) {
	return len(a.roles), len(a.agents)
}
