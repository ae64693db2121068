package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("llm.model", "llama3.2"))
	require.NoError(t, store.Set("llm.model", "mistral"))

	val, ok := store.Get("llm.model")
	assert.True(t, ok)
	assert.Equal(t, "mistral", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_NewWithCopiesValues(t *testing.T) {
	values := map[string]any{"a": "1"}
	store := NewConfigStoreWith(values)
	values["a"] = "changed"

	assert.Equal(t, "1", store.GetString("a"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStoreWith(map[string]any{
		"str":       "text",
		"int":       7,
		"int64":     int64(8),
		"float":     float64(9),
		"strings":   []string{"a", "b"},
		"anys":      []any{"x", 1, "y"},
		"wrongType": 3.5,
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("str"), "text"},
		{"string of int", store.GetString("int"), ""},
		{"int", store.GetInt("int"), 7},
		{"int64", store.GetInt("int64"), 8},
		{"float64", store.GetInt("float"), 9},
		{"int of string", store.GetInt("str"), 0},
		{"float", floatOf(store, "wrongType"), 3.5},
		{"float of int", floatOf(store, "int"), 7.0},
		{"float missing", floatOf(store, "missing"), -1.0},
		{"string slice", store.GetStringSlice("strings"), []string{"a", "b"}},
		{"any slice", store.GetStringSlice("anys"), []string{"x", "y"}},
		{"slice of wrong type", store.GetStringSlice("wrongType"), []string(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_NoOps(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrent(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("k", n)
			_ = store.GetInt("k")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("k")
	assert.True(t, ok)
}

// floatOf returns the float value of key, or -1 when unset.
func floatOf(store *ConfigStore, key string) float64 {
	if v, ok := store.GetFloat(key); ok {
		return v
	}
	return -1
}
