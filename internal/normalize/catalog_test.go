package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/roombooking/internal/domain"
)

func TestDefaultFeatureCatalog(t *testing.T) {
	catalog := DefaultFeatureCatalog()
	assert.Len(t, catalog, 8)
	assert.Equal(t, domain.Feature{ID: "1", Name: "Projector"}, catalog[0])
	assert.Equal(t, domain.Feature{ID: "8", Name: "Wheelchair Access"}, catalog[7])

	catalog[0].Name = "changed"
	assert.Equal(t, "Projector", DefaultFeatureCatalog()[0].Name)
}

func TestFeatureNames(t *testing.T) {
	catalog := []domain.Feature{{ID: "1", Name: "Projector"}, {ID: "2", Name: ""}}

	assert.Equal(t, []string{"Projector", "Feature 2", "Feature 42"}, FeatureNames([]int64{1, 2, 42}, catalog))
	assert.Equal(t, "Whiteboard", FeatureName("2", FeatureCatalog(nil)))
	assert.Empty(t, FeatureNames(nil, catalog))
}

func TestRoleName(t *testing.T) {
	roles := map[domain.ID]string{"1": "Admin"}
	assert.Equal(t, "Admin", RoleName("1", roles))
	assert.Equal(t, "Role 9", RoleName("9", roles))
	assert.Equal(t, domain.NoRoleAssigned, RoleName("", roles))
}
