package voices

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	require.Equal(t, 22, Default.Len())

	seen := map[string]string{}
	for _, d := range Default.Descriptors() {
		id, err := Default.Resolve(d)
		require.NoError(t, err, d)
		assert.NotEmpty(t, id, d)

		if other, dup := seen[id]; dup {
			t.Fatalf("%s and %s both resolve to %s", other, d, id)
		}
		seen[id] = d
	}

	_, err := Default.Resolve(DefaultDescriptor)
	assert.NoError(t, err)
}

func TestDefaultCatalog_KnownEntries(t *testing.T) {
	tests := map[string]string{
		"Bright":        "Zephyr",
		"Firm":          "Kore",
		"Easy-going":    "Callirrhoe",
		"Casual":        "Zubenelgenubi",
		"Knowledgeable": "Sadaltager",
		"Warm":          "Sulafat",
	}
	for descriptor, want := range tests {
		got, err := Default.Resolve(descriptor)
		require.NoError(t, err)
		assert.Equal(t, want, got, descriptor)
	}
}

func TestResolve_Unknown(t *testing.T) {
	for _, d := range []string{"", "warm", "Warm ", "Robotic"} {
		_, err := Default.Resolve(d)
		var unknown *UnknownPersonaError
		require.True(t, errors.As(err, &unknown), "descriptor %q", d)
		assert.Equal(t, d, unknown.Descriptor)
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := map[string][]Persona{
		"duplicate descriptor": {{Descriptor: "Warm", ID: "A"}, {Descriptor: "Warm", ID: "B"}},
		"duplicate id":         {{Descriptor: "Warm", ID: "A"}, {Descriptor: "Cold", ID: "A"}},
		"blank descriptor":     {{Descriptor: " ", ID: "A"}},
		"blank id":             {{Descriptor: "Warm", ID: ""}},
	}
	for name, personas := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(personas...)
			assert.Error(t, err)
		})
	}
}

func TestPersonas_ReturnsCopy(t *testing.T) {
	p := Default.Personas()
	p[0].ID = "mutated"

	id, err := Default.Resolve(p[0].Descriptor)
	require.NoError(t, err)
	assert.Equal(t, "Zephyr", id)
	assert.Equal(t, "Zephyr", Default.Personas()[0].ID)
}
