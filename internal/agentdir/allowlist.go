package agentdir

import (
	"fmt"
	"io"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"gopkg.in/yaml.v3"
)

type allowListFile struct {
	Roles   []string          `yaml:"roles"`
	Agents  []string          `yaml:"agents"`
	Reasons map[string]string `yaml:"reasons"`
}

// WriteAllowList writes an allow-list tracking every generated agent whose
// role is in roles, by role and by id, with the reason mapping of statuses
func WriteAllowList(w io.Writer, agents []types.Agent, roles []string, statuses []Status) error {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	file := allowListFile{
		Roles:   roles,
		Agents:  []string{},
		Reasons: make(map[string]string),
	}
	for _, a := range agents {
		if allowed[a.RoleID] {
			file.Agents = append(file.Agents, a.ID)
		}
	}
	for _, s := range statuses {
		if s.Reason != types.ReasonCustom {
			file.Reasons[s.ID] = s.Reason.String()
		}
	}

	if _, err := fmt.Fprintf(w, "# Generated by agentdir for %d agents\n", len(agents)); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("failed to encode allow-list: %w", err)
	}
	return enc.Close()
}
