package normalize

import (
	"fmt"
	"strconv"

	"github.com/example/roombooking/internal/domain"
)

var defaultFeatures = []domain.Feature{
	{ID: "1", Name: "Projector"},
	{ID: "2", Name: "Whiteboard"},
	{ID: "3", Name: "Video Conferencing"},
	{ID: "4", Name: "Speakerphone"},
	{ID: "5", Name: "TV Display"},
	{ID: "6", Name: "Air Conditioning"},
	{ID: "7", Name: "Wi-Fi"},
	{ID: "8", Name: "Wheelchair Access"},
}

// DefaultFeatureCatalog returns the built-in feature catalog used when the
// backend catalog is unavailable. Ids run from 1 to 8 and never change.
func DefaultFeatureCatalog() []domain.Feature {
	out := make([]domain.Feature, len(defaultFeatures))
	copy(out, defaultFeatures)
	return out
}

// FeatureCatalog returns features, or the built-in catalog when features is empty.
func FeatureCatalog(features []domain.Feature) []domain.Feature {
	if len(features) == 0 {
		return DefaultFeatureCatalog()
	}
	return features
}

// FeatureName resolves the display name of a feature id. Ids missing from the
// catalog get a "Feature {id}" placeholder.
func FeatureName(id domain.ID, catalog []domain.Feature) string {
	for _, f := range catalog {
		if f.ID == id && f.Name != "" {
			return f.Name
		}
	}
	return fmt.Sprintf("Feature %s", id)
}

// FeatureNames resolves every id in order. The result always has one entry
// per id.
func FeatureNames(ids []int64, catalog []domain.Feature) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, FeatureName(domain.ID(strconv.FormatInt(id, 10)), catalog))
	}
	return names
}

// RoleName resolves the display name of a role id against roles, falling back
// to a "Role {id}" placeholder. An unset id resolves to domain.NoRoleAssigned.
func RoleName(id domain.ID, roles map[domain.ID]string) string {
	if id.IsZero() {
		return domain.NoRoleAssigned
	}
	if name, ok := roles[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Role %s", id)
}
