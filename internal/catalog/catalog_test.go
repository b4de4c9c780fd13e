package catalog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestHungrySet(t *testing.T) {
	var got []string
	for _, name := range Builtin().Names() {
		if op, _ := Builtin().Lookup(name); op.Hungry {
			got = append(got, name)
		}
	}
	want := []string{"create_array", "delete", "input", "insert", "load", "remove", "remove_versions", "rename", "store"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("hungry operators mismatch (-want +got):\n%s", diff)
	}
}

func TestArity(t *testing.T) {
	require.True(t, Exactly(2).Accepts(2))
	require.False(t, Exactly(2).Accepts(3))
	require.False(t, AtLeast(2).Accepts(1))
	require.True(t, AtLeast(2).Accepts(9))
	require.Equal(t, "exactly 1 operand", Exactly(1).String())
	require.Equal(t, "at least 2 operands", AtLeast(2).String())
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	op, ok := Builtin().Lookup("STORE")
	require.True(t, ok)
	require.Equal(t, "store", op.Name)
	require.True(t, op.Storing())
	require.Equal(t, 2, op.Target)

	join, _ := Builtin().Lookup("join")
	require.True(t, join.Compose)
	require.False(t, join.Hungry)
}

func TestRestrict(t *testing.T) {
	r := Builtin().Restrict([]string{"scan", "store", "my_plugin_op", ""})
	require.Equal(t, []string{"my_plugin_op", "scan", "store"}, r.Names())

	plugin, ok := r.Lookup("my_plugin_op")
	require.True(t, ok)
	require.Equal(t, AtLeast(0), plugin.Arity)
	require.False(t, plugin.Hungry)

	_, err := r.Resolve("filter")
	var ue *UnknownNameError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, UnknownNameError{Kind: "operator", Name: "filter"}, *ue)
	require.Equal(t, `catalog: unknown operator "filter"`, err.Error())
}
