package reconcile

import (
	"sort"

	"github.com/soyeahso/remdev/internal/domain"
)

// DetectOrphans returns every report whose name is not in persisted, sorted
// by name.
func DetectOrphans(infosByName map[string]domain.WorkspaceAgentInfo, persisted []string) []domain.WorkspaceAgentInfo {
	known := make(map[string]struct{}, len(persisted))
	for _, name := range persisted {
		known[name] = struct{}{}
	}

	var orphans []domain.WorkspaceAgentInfo
	for name, info := range infosByName {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, info)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Name < orphans[j].Name })
	return orphans
}
