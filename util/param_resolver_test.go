package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"email": "a@b.com",
			"age":   float64(31),
			"tags":  []any{"x", "y"},
		},
		"active":  true,
		"nothing": nil,
	}

	for scenario, fn := range map[string]func(t *testing.T){
		"exact token keeps type": func(t *testing.T) {
			require.Equal(t, float64(31), Resolve("{{user.age}}", data))
			require.Equal(t, []any{"x", "y"}, Resolve("{{ user.tags }}", data))
			require.Equal(t, true, Resolve("{{active}}", data))
			require.Nil(t, Resolve("{{nothing}}", data))
		},
		"embedded tokens are stringified": func(t *testing.T) {
			require.Equal(t, "mail a@b.com aged 31", Resolve("mail {{user.email}} aged {{user.age}}", data))
			require.Equal(t, "tags=[\"x\",\"y\"] on=true n=null", Resolve("tags={{user.tags}} on={{active}} n={{nothing}}", data))
		},
		"missing path stays literal": func(t *testing.T) {
			require.Equal(t, "{{missing.path}}", Resolve("{{missing.path}}", data))
			require.Equal(t, "hi {{missing}} a@b.com", Resolve("hi {{missing}} {{user.email}}", data))
		},
		"array index is not supported": func(t *testing.T) {
			require.Equal(t, "{{user.tags.0}}", Resolve("{{user.tags.0}}", data))
		},
		"nested structures": func(t *testing.T) {
			in := map[string]any{
				"to":   "{{user.email}}",
				"list": []any{"{{user.age}}", "static"},
				"deep": map[string]any{"flag": "{{active}}"},
				"num":  float64(7),
			}
			out := ResolveMap(in, data)
			require.Equal(t, map[string]any{
				"to":   "a@b.com",
				"list": []any{float64(31), "static"},
				"deep": map[string]any{"flag": true},
				"num":  float64(7),
			}, out)
			require.Equal(t, "{{user.email}}", in["to"])
		},
		"resolution is idempotent": func(t *testing.T) {
			in := map[string]any{"a": "{{user.email}}", "b": "{{missing}}", "c": "x {{user.age}}"}
			once := ResolveMap(in, data)
			require.Equal(t, once, ResolveMap(once, data))
		},
		"nil map": func(t *testing.T) {
			require.Nil(t, ResolveMap(nil, data))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestHasToken(t *testing.T) {
	require.True(t, HasToken("{{a}}"))
	require.True(t, HasToken(map[string]any{"x": []any{1, "b {{c}}"}}))
	require.False(t, HasToken(map[string]any{"x": "plain"}))
	require.False(t, HasToken(float64(3)))
}

func TestLookup(t *testing.T) {
	data := map[string]any{
		"a":    map[string]any{"b": map[string]any{"c": "d"}, "none": nil},
		"list": []any{"x", "y"},
		"n":    float64(0),
	}
	v, ok := Lookup(data, "a.b.c")
	require.True(t, ok)
	require.Equal(t, "d", v)

	v, ok = Lookup(data, "a.none")
	require.True(t, ok)
	require.Nil(t, v)

	v, ok = Lookup(data, " n ")
	require.True(t, ok)
	require.Equal(t, float64(0), v)

	_, ok = Lookup(data, "missing.path")
	require.False(t, ok)
	_, ok = Lookup(data, "list.0")
	require.False(t, ok)
	_, ok = Lookup(data, "list[0]")
	require.False(t, ok)
	_, ok = Lookup(data, "a.*")
	require.False(t, ok)

	_, ok = Lookup(data, "a..c")
	require.False(t, ok)
	_, ok = Lookup(data, "a.b.c.d")
	require.False(t, ok)
	_, ok = Lookup(data, "")
	require.False(t, ok)
}
