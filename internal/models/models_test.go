package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input    string
		expected Role
		wantErr  bool
	}{
		{"owner", RoleOwner, false},
		{"OWNER", RoleOwner, false},
		{" Customer ", RoleCustomer, false},
		{"admin", RoleAdmin, false},
		{"landlord", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			role, err := ParseRole(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, role)
		})
	}

	assert.True(t, RoleOwner.CanSelfRegister())
	assert.True(t, RoleCustomer.CanSelfRegister())
	assert.False(t, RoleAdmin.CanSelfRegister())
}

func TestPropertyKind(t *testing.T) {
	kind, err := ParsePropertyKind("Commercial")
	require.NoError(t, err)
	assert.Equal(t, KindCommercial, kind)
	assert.Equal(t, "commercials", kind.Table())
	assert.Equal(t, "commercial_features", kind.FeatureTable())
	assert.Equal(t, "commercial_id", kind.ForeignKey())

	_, err = ParsePropertyKind("castle")
	assert.Error(t, err)

	for i, k := range PropertyKinds {
		p, err := NewProperty(k)
		require.NoError(t, err)
		assert.Equal(t, k, p.Kind())
		assert.Equal(t, i, k.Order())
	}
}

func TestNormalizeFeatureNames(t *testing.T) {
	names := NormalizeFeatureNames([]string{"Pool", " pool ", "Garden,  Sea   View", "", "GARDEN"})
	assert.Equal(t, []string{"pool", "garden", "sea view"}, names)
}

func TestResidenceApply(t *testing.T) {
	r := &Residence{}
	title, action, rooms, land := "Flat", "rent", 3, 120.5
	err := r.Apply(PropertyFields{Title: &title, AdAction: &action, Rooms: &rooms, LandArea: &land})
	require.NoError(t, err)
	assert.Equal(t, "Flat", r.Title)
	assert.Equal(t, ActionRent, r.AdAction)
	assert.Equal(t, 3, r.Rooms)
	require.NotNil(t, r.LandArea)
	assert.Equal(t, 120.5, *r.LandArea)

	bad := "lease"
	assert.Error(t, r.Apply(PropertyFields{AdAction: &bad}))
}

func TestVariantEnums(t *testing.T) {
	c := &Commercial{}
	category := "hotel/guesthouse"
	require.NoError(t, c.Apply(PropertyFields{Category: &category}))
	assert.Equal(t, "Hotel/Guesthouse", c.Category)

	assert.Error(t, (&Commercial{}).Apply(PropertyFields{}), "category is required")

	l := &Land{}
	landType, landCategory := "forest", "EXTRAVILAN"
	require.NoError(t, l.Apply(PropertyFields{LandType: &landType, LandCategory: &landCategory}))
	assert.Equal(t, "Forest", l.LandType)
	assert.Equal(t, "Extravilan", l.LandCategory)

	wrong := "swamp"
	assert.Error(t, l.Apply(PropertyFields{LandType: &wrong}))
}

func TestAddress(t *testing.T) {
	b := PropertyBase{Street: "Lietzenburger Straße 91", City: "Emmendorf", Country: "Germany"}
	assert.Equal(t, "Lietzenburger Straße 91, Emmendorf, Germany", b.Address())
}

func TestImageRef(t *testing.T) {
	id := uint(7)
	ref, ok := Image{LandID: &id}.Ref()
	assert.True(t, ok)
	assert.Equal(t, PropertyRef{Kind: KindLand, ID: 7}, ref)

	_, ok = Image{}.Ref()
	assert.False(t, ok)
}
